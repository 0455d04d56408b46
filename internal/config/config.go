// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	GeminiAPIKey     string
	LogLevel         string

	// BotUsername is the @handle used for group-chat mention gating.
	// Left empty, it is resolved once at startup via GetMe and passed down
	// explicitly; it is never cached lazily mid-request.
	BotUsername string

	DefaultCurrency string
	Timezone        string
	Location        *time.Location

	// PendingTTL bounds how long a destructive action waits for a yes/no
	// reply before it is treated as abandoned.
	PendingTTL time.Duration

	// HistoryWindow is the number of conversation turns retained per tenant.
	HistoryWindow int
	// SummaryMaxChars caps the rolling conversation summary.
	SummaryMaxChars int

	OTELEnabled  bool
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		BotUsername:      strings.TrimPrefix(os.Getenv("BOT_USERNAME"), "@"),
		OTELEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTELEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	cfg.DefaultCurrency = "UZS"
	if cur := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_CURRENCY"))); cur != "" {
		cfg.DefaultCurrency = cur
	}

	cfg.Timezone = "Asia/Tashkent"
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			cfg.Timezone = tz
		}
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.PendingTTL = 10 * time.Minute
	if ttlStr := os.Getenv("PENDING_TTL_MINUTES"); ttlStr != "" {
		if m, err := strconv.Atoi(ttlStr); err == nil && m > 0 {
			cfg.PendingTTL = time.Duration(m) * time.Minute
		}
	}

	cfg.HistoryWindow = 10
	if winStr := os.Getenv("HISTORY_WINDOW"); winStr != "" {
		if n, err := strconv.Atoi(winStr); err == nil && n > 0 {
			cfg.HistoryWindow = n
		}
	}

	cfg.SummaryMaxChars = 600
	if capStr := os.Getenv("SUMMARY_MAX_CHARS"); capStr != "" {
		if n, err := strconv.Atoi(capStr); err == nil && n > 0 {
			cfg.SummaryMaxChars = n
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.GeminiAPIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
