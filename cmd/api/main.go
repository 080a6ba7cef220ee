// Command api is the Chron read API server.
//
// Usage:
//
//	chron-api
//	API_PORT=8080 chron-api

// @title Chron API
// @version 1.0.0
// @description Bitemporal archive of a live external game API — version history, derived entities, and aggregated stats.
// @host localhost:3001
// @BasePath /
// @schemes http https
// @contact.name Chron
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/albapepper/chron/internal/api"
	"github.com/albapepper/chron/internal/config"
	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/export"
	"github.com/albapepper/chron/internal/migrate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("connecting to database")
	pool, err := dbpool.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected", "min_conns", cfg.DBPoolMinConns, "max_conns", cfg.DBPoolMaxConns)

	if err := migrate.Run(ctx, pool.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied")

	var exportMgr *export.Manager
	if cfg.DuckDBPath != "" {
		exportMgr, err = export.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("init export manager: %w", err)
		}
		defer exportMgr.Close()

		go exportMgr.RunPeriodic(ctx, cfg.MatviewRefreshInterval)
		logger.Info("duckdb export manager started", "path", cfg.DuckDBPath, "refresh_interval", cfg.MatviewRefreshInterval)
	} else {
		logger.Info("duckdb export disabled (no DUCKDB_PATH)")
	}

	router := api.NewRouter(pool, cfg, exportMgr)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting chron api", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
