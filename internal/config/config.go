// Package config builds the application's startup configuration from the
// environment. All settings live in one explicit struct populated once at
// boot; nothing is read from the environment after Load returns and no
// secret has a compiled-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all externally provided settings.
type Config struct {
	Port           string
	DatabasePath   string
	SessionSecret  string
	UploadRoot     string
	MaxUploadBytes int64
	BcryptCost     int
	CookieSecure   bool
	ShutdownGrace  time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           envOrDefault("PORT", "8080"),
		DatabasePath:   envOrDefault("DATABASE_PATH", "closet.db"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		UploadRoot:     envOrDefault("UPLOAD_ROOT", "uploads"),
		MaxUploadBytes: 8_000_000,
		BcryptCost:     12,
		CookieSecure:   os.Getenv("COOKIE_SECURE") != "false",
		ShutdownGrace:  5 * time.Second,
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", parsed)
		}
		cfg.MaxUploadBytes = parsed
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		if parsed < 4 || parsed > 14 {
			return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", parsed)
		}
		cfg.BcryptCost = parsed
	}

	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
