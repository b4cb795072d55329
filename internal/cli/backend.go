package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/neko/internal/config"
	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/engine"
	"github.com/roach88/neko/internal/recovery"
	"github.com/roach88/neko/internal/store"
	"github.com/roach88/neko/internal/store/pgstore"
)

// Backend is a durable store as the CLI sees it. Implemented by
// store.Store (SQLite) and pgstore.Store (PostgreSQL).
type Backend interface {
	engine.Store
	recovery.Store
	WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error
	ReadRecord(ctx context.Context, eventID string) (domain.ArchiveRecord, error)
	ListRecords(ctx context.Context) ([]domain.ArchiveRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*store.Store)(nil)
	_ Backend = (*pgstore.Store)(nil)
)

// StoreOptions selects the durable store. Empty fields fall back to config.
type StoreOptions struct {
	Database    string
	DatabaseURL string
}

func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $NEKO_DB_PATH)")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL URL, overrides --db (default $NEKO_DATABASE_URL)")
}

// apply overrides cfg with flags that were set.
func (o StoreOptions) apply(cfg *config.Config) {
	if o.DatabaseURL != "" {
		cfg.DatabaseURL = o.DatabaseURL
	}
	if o.Database != "" {
		cfg.DBPath = o.Database
		if o.DatabaseURL == "" {
			cfg.DatabaseURL = ""
		}
	}
}

// openBackend opens PostgreSQL when a URL is configured and SQLite otherwise,
// creating the database directory if needed.
func openBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// loadConfig reads configuration and applies store flag overrides.
func loadConfig(opts StoreOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts.apply(&cfg)
	return cfg, nil
}

// openReadOnly is the shared setup of list, view and archive.
func openReadOnly(ctx context.Context, opts StoreOptions) (Backend, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	db, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return db, nil
}
