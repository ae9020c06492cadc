// Package server runs the HTTP listener and the background maintenance
// scheduler, tying their lifecycles to one context.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dajeong-health/intake-server/internal/config"
	"github.com/dajeong-health/intake-server/internal/database"
)

// Server owns the HTTP listener and the gocron scheduler.
type Server struct {
	httpServer *http.Server
	scheduler  gocron.Scheduler
	store      database.Store
	cfg        *config.Config
	logger     *slog.Logger
}

// New creates a Server around the given handler.
func New(handler http.Handler, store database.Store, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "server"),
	}

	if cfg.Scheduler.Enabled {
		sched, err := gocron.NewScheduler()
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
		s.scheduler = sched
		if err := s.registerJobs(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// registerJobs sets up the recurring maintenance work: deactivating
// sessions with no recent activity, and periodic SQL maintenance.
func (s *Server) registerJobs() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Scheduler.CleanupInterval),
		gocron.NewTask(func(ctx context.Context) {
			cutoff := time.Now().UTC().Add(-s.cfg.Scheduler.InactiveAfter)
			deactivated, err := s.store.DeactivateStaleTranscripts(ctx, cutoff)
			if err != nil {
				s.logger.Error("stale session cleanup failed", "error", err)
				return
			}
			if deactivated > 0 {
				s.logger.Info("deactivated stale sessions", "count", deactivated)
			}
		}),
		gocron.WithName("stale-session-cleanup"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}

	_, err = s.scheduler.NewJob(
		gocron.CronJob("0 4 * * *", false),
		gocron.NewTask(func(ctx context.Context) {
			if err := s.store.RunMaintenance(ctx); err != nil {
				s.logger.Error("database maintenance failed", "error", err)
				return
			}
			s.logger.Info("database maintenance completed")
		}),
		gocron.WithName("database-maintenance"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	return nil
}

// Run starts everything and blocks until ctx is cancelled or the
// listener fails. Shutdown is graceful within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if s.scheduler != nil {
		s.scheduler.Start()
		s.logger.Info("scheduler started",
			"cleanup_interval", s.cfg.Scheduler.CleanupInterval,
			"inactive_after", s.cfg.Scheduler.InactiveAfter)
	}

	g.Go(func() error {
		s.logger.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.scheduler != nil {
			if err := s.scheduler.Shutdown(); err != nil {
				s.logger.Error("scheduler shutdown failed", "error", err)
			}
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
