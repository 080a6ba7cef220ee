// Package export maintains a DuckDB-backed OLAP mirror of the stats
// matviews for bulk Parquet export: an in-process DuckDB database attaches
// to the primary Postgres database read-only, periodically mirrors the
// exploded stats table into native DuckDB tables, and snapshots the result
// to a Parquet file kept in memory for the `/export` route to serve.
//
// Ground: original_source/chron-db/src/duck.rs (ATTACH + CREATE OR REPLACE
// TABLE ... AS FROM refresh) and original_source/chron-api/src/duck.rs
// (the in-memory Parquet snapshot served by `/export`).
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/albapepper/chron/internal/config"
)

// mirroredTables lists the tables copied wholesale from Postgres into the
// DuckDB mirror on each refresh — deliberately small, since each is a full
// table rebuild, not an incremental sync.
var mirroredTables = []string{"game_player_stats_exploded", "teams", "leagues"}

// Manager owns one DuckDB connection attached read-only to Postgres and the
// most recently exported Parquet snapshot.
type Manager struct {
	db     *sql.DB
	pgURI  string
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot []byte
}

// New opens (creating if necessary) the DuckDB file at cfg.DuckDBPath,
// falling back to a file under the OS temp directory, and installs the
// postgres extension needed for ATTACH. It does not attach or refresh yet
// — call Refresh for the first mirror.
func New(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	path := cfg.DuckDBPath
	if path == "" {
		path = filepath.Join(os.TempDir(), "chron.duckdb")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // a single writer connection, per duck.rs's write pool of size 1

	if _, err := db.Exec("INSTALL postgres; LOAD postgres;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("install duckdb postgres extension: %w", err)
	}

	return &Manager{db: db, pgURI: cfg.DatabaseURL, logger: logger}, nil
}

// Close releases the DuckDB connection.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Refresh re-attaches Postgres, mirrors mirroredTables into native DuckDB
// tables, and re-exports the mirror to a Parquet snapshot held in memory —
// the full cycle this package's periodic worker runs on an interval.
func (m *Manager) Refresh(ctx context.Context) error {
	// pgURI may contain credentials; DuckDB's ATTACH has no bind-parameter
	// form for a connection string, so it is interpolated directly, same
	// as duck.rs's own "pls no inject" ATTACH call.
	attach := fmt.Sprintf("ATTACH IF NOT EXISTS '%s' AS pgdb (TYPE postgres, READ_ONLY)", m.pgURI)
	if _, err := m.db.ExecContext(ctx, attach); err != nil {
		return fmt.Errorf("attach postgres: %w", err)
	}

	for _, table := range mirroredTables {
		// table is drawn exclusively from the fixed mirroredTables slice
		// above, never request input.
		stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS FROM pgdb.%s", table, table)
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mirror table %s: %w", table, err)
		}
	}

	var rowCount int
	if err := m.db.QueryRowContext(ctx, "SELECT count(*) FROM game_player_stats_exploded").Scan(&rowCount); err != nil {
		return fmt.Errorf("count mirrored rows: %w", err)
	}

	snapshot, err := m.exportParquet(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()

	m.logger.Info("refreshed duckdb mirror", "rows", rowCount, "bytes", len(snapshot))
	return nil
}

func (m *Manager) exportParquet(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "chron-export-*")
	if err != nil {
		return nil, fmt.Errorf("create export tempdir: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "export.parquet")
	copyStmt := fmt.Sprintf("COPY (FROM game_player_stats_exploded) TO '%s' (FORMAT parquet, COMPRESSION zstd)", file)
	if _, err := m.db.ExecContext(ctx, copyStmt); err != nil {
		return nil, fmt.Errorf("copy to parquet: %w", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read exported parquet: %w", err)
	}
	return data, nil
}

// Snapshot returns the most recently exported Parquet bytes, or nil if no
// refresh has completed yet.
func (m *Manager) Snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// RunPeriodic refreshes the mirror once immediately and then every
// interval until ctx is canceled — the API process's own background loop
// (ground: original_source/chron-api/src/duck.rs's `worker`), independent
// of the ingestion scheduler's unrelated worker fleet.
func (m *Manager) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := m.Refresh(ctx); err != nil {
		m.logger.Error("initial duckdb refresh failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.Error("duckdb refresh failed", "err", err)
			}
		}
	}
}
