// Package config loads server configuration from an optional config.yml and
// the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	SQLitePath     string `mapstructure:"SQLITE_PATH"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisChannel   string `mapstructure:"REDIS_CHANNEL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	TickDuration   string `mapstructure:"TICK_DURATION"`
	EditWindow     string `mapstructure:"EDIT_WINDOW"`
	Genesis        string `mapstructure:"GENESIS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	Env            string `mapstructure:"APP_ENV"`

	tick    time.Duration
	window  time.Duration
	genesis time.Time
}

var keys = map[string]string{
	"PORT":            "8080",
	"STORE_DRIVER":    DriverSQLite,
	"SQLITE_PATH":     "./data/microledger.db",
	"DATABASE_URL":    "",
	"REDIS_URL":       "",
	"REDIS_CHANNEL":   "microledger:events",
	"JWT_SECRET":      "",
	"ALLOWED_ORIGINS": "http://localhost:5173,http://localhost:3000",
	"TICK_DURATION":   "3s",
	"EDIT_WINDOW":     "10m",
	"GENESIS":         "2025-01-01T00:00:00Z",
	"LOG_LEVEL":       "info",
	"APP_ENV":         "development",
}

// Load reads config.yml from dir (if present) and overlays the environment.
func Load(dir string) (*Config, error) {
	v := viper.New()
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	for key, def := range keys {
		v.SetDefault(key, def)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values and parses durations.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	var err error
	if c.tick, err = time.ParseDuration(c.TickDuration); err != nil || c.tick <= 0 {
		return fmt.Errorf("TICK_DURATION must be a positive duration, got %q", c.TickDuration)
	}
	if c.window, err = time.ParseDuration(c.EditWindow); err != nil || c.window <= 0 {
		return fmt.Errorf("EDIT_WINDOW must be a positive duration, got %q", c.EditWindow)
	}
	if c.Genesis != "" {
		if c.genesis, err = time.Parse(time.RFC3339, c.Genesis); err != nil {
			return fmt.Errorf("GENESIS must be RFC3339: %w", err)
		}
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.StoreDriver == DriverMemory {
			slog.Warn("STORE_DRIVER is 'memory' in production; the ledger will not survive a restart")
		}
	} else if c.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty; callers are identified by the X-Identity header")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TickDur returns the parsed TICK_DURATION.
func (c *Config) TickDur() time.Duration { return c.tick }

// EditWindowDur returns the parsed EDIT_WINDOW.
func (c *Config) EditWindowDur() time.Duration { return c.window }

// GenesisTime returns GENESIS, or the zero time when unset.
func (c *Config) GenesisTime() time.Time { return c.genesis }

// Origins splits ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
