// Package config provides configuration loading, validation, and defaults
// for the intake server. It reads from a YAML file and INTAKE_* environment
// variables, with validation via struct tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components:
// logging, HTTP server, database, dialogue engine, conversation policy,
// and the background scheduler.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"          validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=1m"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// EngineConfig holds settings for the external dialogue/report engine.
type EngineConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	ChatTimeout    time.Duration `mapstructure:"chat_timeout"    validate:"min=1s,max=5m"`
	SummaryTimeout time.Duration `mapstructure:"summary_timeout" validate:"min=1s,max=5m"`
}

// ConversationConfig holds turn-handling policy: history window size,
// duplicate-suppression windows, and the fixed greeting/closing texts.
type ConversationConfig struct {
	// HistoryWindow counts bot/user exchange pairs; -1 disables the bound
	// and 0 falls back to the default of 10.
	HistoryWindow     int           `mapstructure:"history_window"`
	MessageDupWindow  time.Duration `mapstructure:"message_dup_window"  validate:"min=0,max=1m"`
	ExchangeDupWindow time.Duration `mapstructure:"exchange_dup_window" validate:"min=0,max=1m"`
	Greeting          string        `mapstructure:"greeting"            validate:"required"`
	ClosingMessage    string        `mapstructure:"closing_message"     validate:"required"`
}

// SchedulerConfig controls the background maintenance jobs.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"min=1m"`
	InactiveAfter   time.Duration `mapstructure:"inactive_after"   validate:"min=1m"`
}

// Defaults for the greeting and closing replies. The greeting is the first
// bot message seeded into every new transcript; the closing message is
// returned verbatim for turns on an already-finished session.
const (
	DefaultGreeting = "안녕하세요? 제 이름은 디제이, 정신건강 문진 대화를 위한 챗봇이에요 🩺 오늘 만나서 정말 반가워요 🙌 당신의 이름을 알려주실래요? 👀"
	DefaultClosing  = "죄송합니다. 이 대화는 이미 종료되었습니다."
)

// Load loads and validates configuration from:
// 1. Default values
// 2. The YAML file at configPath (optional)
// 3. INTAKE_* environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing config file is fine, defaults plus env cover everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "intake.db")

	v.SetDefault("engine.base_url", "http://localhost:5001")
	v.SetDefault("engine.chat_timeout", 60*time.Second)
	v.SetDefault("engine.summary_timeout", 30*time.Second)

	v.SetDefault("conversation.history_window", 10)
	v.SetDefault("conversation.message_dup_window", 5*time.Second)
	v.SetDefault("conversation.exchange_dup_window", 10*time.Second)
	v.SetDefault("conversation.greeting", DefaultGreeting)
	v.SetDefault("conversation.closing_message", DefaultClosing)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cleanup_interval", 10*time.Minute)
	v.SetDefault("scheduler.inactive_after", time.Hour)
}
