// Command ingest is the Chron ingestion CLI.
//
// Usage:
//
//	chron-ingest serve
//	chron-ingest migrate
//	chron-ingest rebuild-derived
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/albapepper/chron/internal/config"
	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/geocode"
	"github.com/albapepper/chron/internal/httpclient"
	"github.com/albapepper/chron/internal/ingest"
	"github.com/albapepper/chron/internal/migrate"
	"github.com/albapepper/chron/internal/store"
	"github.com/albapepper/chron/internal/upstream"
)

var logger *slog.Logger

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "chron-ingest",
		Short: "Chron ingestion scheduler and maintenance CLI",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(rebuildDerivedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command — run every registered worker until interrupted
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion scheduler: every periodic worker, until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(func(ctx context.Context, wc *ingest.Context) error {
				workers := ingest.AllWorkers(wc.Config)
				wc.Logger.Info("starting ingestion scheduler", "workers", len(workers))
				for _, w := range workers {
					ingest.Spawn(ctx, wc, w)
				}
				<-ctx.Done()
				wc.Logger.Info("ingestion scheduler shutting down")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := dbpool.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			if err := migrate.Run(ctx, pool.Pool); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			newLogger(false).Info("migrations applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// rebuild-derived command — replay Player/Team docs through derivation
// --------------------------------------------------------------------------

func rebuildDerivedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-derived",
		Short: "Replay the latest stored document of every Player and Team through derivation and rebuild the derived version timelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(func(ctx context.Context, wc *ingest.Context) error {
				wc.Logger.Info("rebuilding derived entities")
				if err := wc.RebuildDerived(ctx); err != nil {
					return fmt.Errorf("rebuild derived: %w", err)
				}
				wc.Logger.Info("rebuild complete")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withContext loads configuration, connects to the database, builds the
// shared ingest.Context, and runs fn under a signal-cancellable context.
func withContext(fn func(ctx context.Context, wc *ingest.Context) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = newLogger(cfg.Debug)
	slog.SetDefault(logger)

	logger.Info("connecting to database")
	pool, err := dbpool.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	httpClient := httpclient.New(cfg.HTTPConcurrency, cfg.HTTPUserAgent, logger)
	upstreamClient := upstream.New(httpClient, cfg.UpstreamBaseURL, logger)
	geocoder := geocode.New(httpClient, cfg.MapsAPIKey)

	content := store.NewContentStore(pool)
	obs := store.NewObservationLog(pool)
	versions := store.NewVersionBuilder(pool, obs)

	wc := &ingest.Context{
		Config:   cfg,
		Pool:     pool,
		Content:  content,
		Obs:      obs,
		Versions: versions,
		Upstream: upstreamClient,
		Geocoder: geocoder,
		Logger:   logger,
	}

	return fn(ctx, wc)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
	}))
}
