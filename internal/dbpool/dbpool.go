// Package dbpool provides a pgxpool-based connection pool with prepared
// statement registration and health checking, shared by the store, query,
// stats, and ingest layers.
package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/chron/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the statements every layer issues
// repeatedly. Prepared statements eliminate parse overhead on the hot
// ingestion and read paths.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"health_check": "SELECT 1",

		// Content store
		"object_insert": "INSERT INTO objects (hash, data) VALUES ($1, $2) ON CONFLICT DO NOTHING RETURNING data",
		"object_get":    "SELECT data FROM objects WHERE hash = $1",

		// Observation log
		"observation_insert": "INSERT INTO observations (kind, entity_id, timestamp, request_time, hash) VALUES ($1, $2, $3, $4, $5)",

		// Version builder
		"add_version":         "SELECT add_version($1, $2, $3, $4, $5)",
		"rebuild_entity":      "SELECT rebuild_entity($1, $2)",
		"distinct_entity_ids": "SELECT DISTINCT entity_id FROM observations WHERE kind = $1",

		// Derived domain tables
		"game_upsert": "INSERT INTO games (game_id, season, day, home_team_id, away_team_id, state, event_count, last_update_json) " +
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (game_id) DO UPDATE SET " +
			"season=excluded.season, day=excluded.day, state=excluded.state, event_count=excluded.event_count, last_update_json=excluded.last_update_json",
		"team_by_id_at": "SELECT data FROM versions v JOIN objects o ON o.hash = v.hash " +
			"WHERE v.kind = $1 AND v.entity_id = $2 AND v.valid_from <= $3 AND (v.valid_to IS NULL OR v.valid_to > $3) LIMIT 1",

		"game_event_upsert": "INSERT INTO game_events (game_id, index, data_json, pitcher_id, batter_id, observed_at, season, day) " +
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (game_id, index) DO UPDATE SET " +
			"data_json=excluded.data_json, pitcher_id=excluded.pitcher_id, batter_id=excluded.batter_id, observed_at=excluded.observed_at " +
			"WHERE excluded.observed_at <= game_events.observed_at",
		"games_by_season_not_complete": "SELECT game_id, season, day, home_team_id, away_team_id, state, event_count " +
			"FROM games WHERE season = $1 AND state <> 'Complete' ORDER BY game_id",
		"games_by_day": "SELECT game_id, season, day, home_team_id, away_team_id, state, event_count " +
			"FROM games WHERE season = $1 AND day = $2 ORDER BY game_id",

		"team_upsert":   "INSERT INTO teams (entity_id, data_json, observed_at) VALUES ($1,$2,$3) ON CONFLICT (entity_id) DO UPDATE SET data_json=excluded.data_json, observed_at=excluded.observed_at WHERE excluded.observed_at >= teams.observed_at",
		"league_upsert": "INSERT INTO leagues (entity_id, data_json, observed_at) VALUES ($1,$2,$3) ON CONFLICT (entity_id) DO UPDATE SET data_json=excluded.data_json, observed_at=excluded.observed_at WHERE excluded.observed_at >= leagues.observed_at",

		"location_lookup": "SELECT data_json FROM locations WHERE loc_normalized = $1",
		"location_upsert": "INSERT INTO locations (loc_normalized, data_json) VALUES ($1,$2) ON CONFLICT (loc_normalized) DO NOTHING",

		"player_name_map_insert": "INSERT INTO player_name_map (timestamp, player_id, player_name) VALUES ($1,$2,$3)",

		"latest_observation_for_entity": "SELECT o.data, ob.timestamp FROM observations ob JOIN objects o ON o.hash = ob.hash " +
			"WHERE ob.kind = $1 AND ob.entity_id = $2 ORDER BY ob.timestamp DESC LIMIT 1",
		"all_latest_by_kind": "SELECT v.entity_id, o.data FROM latest_versions v JOIN objects o ON o.hash = v.hash WHERE v.kind = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
