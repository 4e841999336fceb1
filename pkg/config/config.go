// Package config loads runtime configuration from environment variables.
// Every knob has a default that works for local development; production
// deploys override through the environment only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full runtime configuration.
type Config struct {
	Port     string
	LogLevel string

	// StoreDriver selects the persistence backend: "sqlite", "postgres" or
	// "memory".
	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	// RedisAddr enables distributed per-vanpool locking when set; empty
	// means in-process locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// OpenAI-compatible endpoint for reply classification and LLM-backed
	// verification. An empty key falls back to keyword classification.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// ResendAPIKey authorizes outbound mail. Empty disables real sends.
	ResendAPIKey string

	// JWTSecret signs and verifies API bearer tokens.
	JWTSecret string

	// TemplateOverridesPath points at an optional YAML file replacing the
	// built-in outreach templates.
	TemplateOverridesPath string

	// ReplyTimeout is how long a flagged vanpool gets to respond before
	// cancellation escalates to a human.
	ReplyTimeout time.Duration

	// OTLPEndpoint enables trace and metric export when set.
	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  envOr("PORT", "8080"),
		LogLevel:              envOr("LOG_LEVEL", "INFO"),
		StoreDriver:           envOr("STORE_DRIVER", "sqlite"),
		SQLitePath:            envOr("SQLITE_PATH", "pool-patrol.db"),
		DatabaseURL:           envOr("DATABASE_URL", "postgres://patrol@localhost:5432/patrol?sslmode=disable"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           envOr("OPENAI_MODEL", "gpt-4o-mini"),
		ResendAPIKey:          os.Getenv("RESEND_API_KEY"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		TemplateOverridesPath: os.Getenv("TEMPLATE_OVERRIDES"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	switch cfg.StoreDriver {
	case "sqlite", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want sqlite, postgres or memory)", cfg.StoreDriver)
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = envDuration("LOCK_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReplyTimeout, err = envDuration("REPLY_TIMEOUT", 7*24*time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
