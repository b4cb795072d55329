package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/neko/internal/archive"
	"github.com/roach88/neko/internal/config"
	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/engine"
	"github.com/roach88/neko/internal/httpapi"
	"github.com/roach88/neko/internal/present"
	"github.com/roach88/neko/internal/recovery"
	"github.com/roach88/neko/internal/status"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	StoreOptions
	Addr       string
	ArchiveDir string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the giveaway engine and HTTP API",
		Long: `Run the giveaway engine with its recovery loop, status rotation and HTTP API.

Configuration comes from NEKO_* environment variables and an optional .env
file; flags override them. Giveaways stored by a previous run are reloaded on
startup and those whose deadline passed while stopped are concluded.

Example:
  neko serve
  neko serve --db ./data/neko.db --addr :8080 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (default $NEKO_HTTP_ADDR)")
	cmd.Flags().StringVar(&opts.ArchiveDir, "archive-dir", "", "archive directory (default $NEKO_ARCHIVE_DIR)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.StoreOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.ArchiveDir != "" {
		cfg.ArchiveDir = opts.ArchiveDir
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := config.NewLogger(level, cfg.Env, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening store", "postgres", cfg.DatabaseURL != "", "path", cfg.DBPath)
	db, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer db.Close()

	format, err := archive.ParseFormat(cfg.ArchiveFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid archive format", err)
	}
	sink, err := archive.NewFileSink(cfg.ArchiveDir, format)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare archive directory", err)
	}

	statusCfg, err := status.LoadConfig(cfg.StatusFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load status messages", err)
	}

	console := present.NewConsole(cmd.OutOrStdout())

	// The status manager observes conclusions and reads the live set, so it
	// is built after the engine and reached through the hook's closure.
	var statusMgr *status.Manager
	eng := engine.New(db, console, archive.Multi{db, sink},
		engine.WithLogger(logger),
		engine.WithStrictDurations(cfg.StrictDurations),
		engine.WithRefreshInterval(cfg.RefreshInterval),
		engine.WithConcludeHook(func(o domain.Outcome) { statusMgr.Observe(o) }),
	)
	statusMgr = status.New(statusCfg, eng, console,
		status.WithLogger(logger),
		status.WithInterval(cfg.StatusInterval),
	)
	loop := recovery.New(db, eng, console,
		recovery.WithInterval(cfg.ReconcileInterval),
		recovery.WithLogger(logger),
	)

	router := httpapi.NewRouter(eng, db, httpapi.Options{APIKeys: cfg.APIKeys, Logger: logger})
	srv := httpapi.NewServer(cfg.HTTPAddr, router)
	if len(cfg.APIKeys) == 0 {
		logger.Warn("no API keys configured, write endpoints will reject every request")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return statusMgr.Run(gctx) })
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Engine started, serving on %s\n", cfg.HTTPAddr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "serve stopped", err)
	}
	logger.Info("shutdown complete")
	return nil
}
