// Package main contains the entrypoint for the intake API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dajeong-health/intake-server/internal/config"
	"github.com/dajeong-health/intake-server/internal/conversation"
	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/engine"
	"github.com/dajeong-health/intake-server/internal/httpapi"
	"github.com/dajeong-health/intake-server/internal/logger"
	"github.com/dajeong-health/intake-server/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, db, engine client,
// coordinator, router, server), blocks until shutdown, and returns an
// exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	engineClient := engine.NewClient(
		cfg.Engine.BaseURL,
		cfg.Engine.ChatTimeout,
		cfg.Engine.SummaryTimeout,
		log,
	)

	coord := conversation.New(store, engineClient, log, conversation.Options{
		Greeting:          cfg.Conversation.Greeting,
		ClosingMessage:    cfg.Conversation.ClosingMessage,
		HistoryWindow:     cfg.Conversation.HistoryWindow,
		MessageDupWindow:  cfg.Conversation.MessageDupWindow,
		ExchangeDupWindow: cfg.Conversation.ExchangeDupWindow,
	})

	handler := httpapi.NewHandler(coord, store, log)
	srv, err := server.New(handler.Router(), store, cfg, log)
	if err != nil {
		log.Error("Failed to create server", "error", err)
		return 1
	}

	log.Info("Starting intake server...",
		"address", cfg.Server.Address,
		"engine", cfg.Engine.BaseURL)
	runErr := srv.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Server stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Server stopped gracefully.")
	return 0
}
