// Package config loads the server's settings from environment variables.
//
// Every field has an `env` tag naming its variable and, where it makes
// sense, an `envDefault`. JWT_SECRET has no default: a server that signs
// tokens with a well-known key would accept anybody's forged token.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSecretLength is the shortest JWT_SECRET Load accepts.
const MinSecretLength = 16

// Config holds runtime settings for the messagely server.
type Config struct {
	Port        int           `env:"PORT"         envDefault:"8080"`
	DBDriver    string        `env:"DB_DRIVER"    envDefault:"sqlite"`
	DatabaseURL string        `env:"DATABASE_URL" envDefault:"data/messagely.db"`
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTIssuer   string        `env:"JWT_ISSUER"   envDefault:"messagely"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"    envDefault:"24h"`
	BcryptCost  int           `env:"BCRYPT_COST"  envDefault:"12"`
	RedisURL    string        `env:"REDIS_URL"`
	LogLevel    string        `env:"LOG_LEVEL"    envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that would stop the server from
// working correctly.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	switch c.DBDriver {
	case "sqlite", "sqlite3", "pgx", "postgres", "postgresql":
	default:
		return fmt.Errorf("config: DB_DRIVER %q must be sqlite or pgx", c.DBDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", MinSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level, falling back to info.
func (c Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps debug|info|warn|error (any case) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
