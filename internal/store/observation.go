package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/entity"
)

// ObservationLog is the append-only source of truth: one row per poll.
// Writes never fail on duplicates — uniqueness on (kind, entity_id,
// timestamp) is a recommendation the schema may enforce, not a guarantee the
// log depends on.
type ObservationLog struct {
	pool *dbpool.Pool
}

func NewObservationLog(pool *dbpool.Pool) *ObservationLog {
	return &ObservationLog{pool: pool}
}

// InsertOne appends a single observation.
func (l *ObservationLog) InsertOne(ctx context.Context, obs entity.Observation) error {
	_, err := l.pool.Exec(ctx, "observation_insert",
		int16(obs.Kind), obs.EntityID, obs.Timestamp, obs.RequestElapsed.Seconds(), obs.Hash[:])
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// InsertBulk appends many observations with a single UNNEST-style insert,
// ground: original_source's insert_observations_raw_bulk.
func (l *ObservationLog) InsertBulk(ctx context.Context, obs []entity.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	kinds := make([]int16, len(obs))
	ids := make([]string, len(obs))
	timestamps := make([]time.Time, len(obs))
	durations := make([]float64, len(obs))
	hashes := make([][]byte, len(obs))
	for i, o := range obs {
		kinds[i] = int16(o.Kind)
		ids[i] = o.EntityID
		timestamps[i] = o.Timestamp
		durations[i] = o.RequestElapsed.Seconds()
		hashes[i] = o.Hash[:]
	}
	_, err := l.pool.Exec(ctx,
		"INSERT INTO observations (kind, entity_id, timestamp, request_time, hash) "+
			"SELECT unnest($1::smallint[]), unnest($2::text[]), unnest($3::timestamptz[]), unnest($4::float8[]), unnest($5::bytea[])",
		kinds, ids, timestamps, durations, hashes)
	if err != nil {
		return fmt.Errorf("bulk insert observations: %w", err)
	}
	return nil
}

// Scan streams every observation for (kind, entityID) in ascending timestamp
// order. Callers must call Close on the returned rows when done early.
func (l *ObservationLog) Scan(ctx context.Context, kind entity.Kind, entityID string) (pgx.Rows, error) {
	rows, err := l.pool.Query(ctx,
		"SELECT kind, entity_id, timestamp, request_time, hash FROM observations "+
			"WHERE kind = $1 AND entity_id = $2 ORDER BY timestamp ASC",
		int16(kind), entityID)
	if err != nil {
		return nil, fmt.Errorf("scan observations: %w", err)
	}
	return rows, nil
}

// ScanObservation decodes one row produced by Scan into an Observation.
func ScanObservation(rows pgx.Rows) (entity.Observation, error) {
	var (
		kind     int16
		id       string
		ts       time.Time
		dur      float64
		hashByte []byte
	)
	if err := rows.Scan(&kind, &id, &ts, &dur, &hashByte); err != nil {
		return entity.Observation{}, err
	}
	var h entity.Hash
	copy(h[:], hashByte)
	return entity.Observation{
		Kind:           entity.Kind(kind),
		EntityID:       id,
		Timestamp:      ts,
		RequestElapsed: time.Duration(dur * float64(time.Second)),
		Hash:           h,
	}, nil
}

// DistinctEntityIDs returns every entity id ever observed for kind.
func (l *ObservationLog) DistinctEntityIDs(ctx context.Context, kind entity.Kind) ([]string, error) {
	rows, err := l.pool.Query(ctx, "distinct_entity_ids", int16(kind))
	if err != nil {
		return nil, fmt.Errorf("distinct entity ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
