// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/neko/internal/archive"
)

// EnvProduction disables .env loading and selects JSON logs.
const EnvProduction = "production"

// Config holds everything `neko serve` needs.
type Config struct {
	Env string `env:"NEKO_ENV" envDefault:"development"`

	// DBPath is the SQLite database file. Ignored when DatabaseURL is set.
	DBPath      string `env:"NEKO_DB_PATH"      envDefault:"data/neko.db"`
	DatabaseURL string `env:"NEKO_DATABASE_URL"`

	ArchiveDir    string `env:"NEKO_ARCHIVE_DIR"    envDefault:"giveaways"`
	ArchiveFormat string `env:"NEKO_ARCHIVE_FORMAT" envDefault:"text"`

	HTTPAddr string   `env:"NEKO_HTTP_ADDR" envDefault:"localhost:8080"`
	APIKeys  []string `env:"NEKO_API_KEYS"  envSeparator:","`

	ReconcileInterval time.Duration `env:"NEKO_RECONCILE_INTERVAL" envDefault:"5m"`
	RefreshInterval   time.Duration `env:"NEKO_REFRESH_INTERVAL"   envDefault:"1m"`
	StatusFile        string        `env:"NEKO_STATUS_FILE"        envDefault:"status.yaml"`
	StatusInterval    time.Duration `env:"NEKO_STATUS_INTERVAL"    envDefault:"1m"`

	StrictDurations bool   `env:"NEKO_STRICT_DURATIONS"`
	LogLevel        string `env:"NEKO_LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (outside production, if present) and then the process
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if os.Getenv("NEKO_ENV") != EnvProduction {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses cfg from the given variables only. Used by tests.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the rest of the process cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" && c.DBPath == "" {
		errs = append(errs, errors.New("NEKO_DB_PATH or NEKO_DATABASE_URL is required"))
	}
	if _, err := archive.ParseFormat(c.ArchiveFormat); err != nil {
		errs = append(errs, fmt.Errorf("NEKO_ARCHIVE_FORMAT: %w", err))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("NEKO_LOG_LEVEL: %w", err))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("NEKO_RECONCILE_INTERVAL must be positive"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, errors.New("NEKO_REFRESH_INTERVAL must not be negative"))
	}
	if c.StatusInterval <= 0 {
		errs = append(errs, errors.New("NEKO_STATUS_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Production reports whether the process runs in the production environment.
func (c Config) Production() bool {
	return c.Env == EnvProduction
}
