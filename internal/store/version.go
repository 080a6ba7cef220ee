package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/entity"
)

// VersionBuilder folds the observation log into per-entity version
// timelines, either incrementally on the hot ingest path or by full rebuild
// on the cold path (§4.C).
type VersionBuilder struct {
	pool        *dbpool.Pool
	log         *ObservationLog
	rebuildPool pond.Pool
}

func NewVersionBuilder(pool *dbpool.Pool, log *ObservationLog) *VersionBuilder {
	return &VersionBuilder{
		pool:        pool,
		log:         log,
		rebuildPool: pond.NewPool(10), // ≤10 concurrent rebuilds, spec.md §4.C
	}
}

// AddVersion is the incremental hot path: it reads the current open version
// for (kind, id); if the hash is unchanged it is a no-op, otherwise it closes
// the open version at ts and opens a new one. Implemented as a call to the
// add_version SQL routine so the read-modify-write is atomic per entity.
func (b *VersionBuilder) AddVersion(ctx context.Context, kind entity.Kind, entityID string, hash entity.Hash, ts time.Time, requestElapsed time.Duration) error {
	_, err := b.pool.Exec(ctx, "add_version",
		int16(kind), entityID, hash[:], ts, float32(requestElapsed.Seconds()))
	if err != nil {
		return fmt.Errorf("add_version(%s, %s): %w", kind, entityID, err)
	}
	return nil
}

// RebuildEntity purges existing version rows for (kind, id) and replays the
// observation log in ascending timestamp order, emitting one version per run
// of equal adjacent hashes. Ties on timestamp are broken by ascending
// lexicographic hash comparison so rebuilds are reproducible — an explicit
// resolution of the open question in spec.md §9 (see DESIGN.md).
func (b *VersionBuilder) RebuildEntity(ctx context.Context, kind entity.Kind, entityID string) error {
	_, err := b.pool.Exec(ctx, "rebuild_entity", int16(kind), entityID)
	if err != nil {
		return fmt.Errorf("rebuild_entity(%s, %s): %w", kind, entityID, err)
	}
	return nil
}

// RebuildAll fans RebuildEntity out across every known entity id for kind,
// bounded at ≤10 concurrent rebuilds (ground: original_source's
// buffer_unordered(10) in ChronDb::rebuild_all).
func (b *VersionBuilder) RebuildAll(ctx context.Context, kind entity.Kind) error {
	ids, err := b.log.DistinctEntityIDs(ctx, kind)
	if err != nil {
		return fmt.Errorf("rebuild all %s: list entity ids: %w", kind, err)
	}

	group := b.rebuildPool.NewGroup()
	for _, id := range ids {
		id := id
		group.SubmitErr(func() error {
			return b.RebuildEntity(ctx, kind, id)
		})
	}
	return group.Wait()
}

// FoldObservations applies the §4.C run-length folding rule in Go, used by
// tests and by in-process rebuild paths that don't want to round-trip
// through the SQL function. Equal-hash adjacent observations collapse into
// one version; ties on timestamp are broken by ascending hash bytes.
func FoldObservations(observations []entity.Observation) []entity.Version {
	if len(observations) == 0 {
		return nil
	}

	ordered := make([]entity.Observation, len(observations))
	copy(ordered, observations)
	sortObservations(ordered)

	versions := make([]entity.Version, 0, len(ordered))
	current := entity.Version{
		Kind:      ordered[0].Kind,
		EntityID:  ordered[0].EntityID,
		ValidFrom: ordered[0].Timestamp,
		Hash:      ordered[0].Hash,
	}

	for _, obs := range ordered[1:] {
		if obs.Hash == current.Hash {
			continue
		}
		current.ValidTo = obs.Timestamp
		versions = append(versions, current)
		current = entity.Version{
			Kind:      obs.Kind,
			EntityID:  obs.EntityID,
			ValidFrom: obs.Timestamp,
			Hash:      obs.Hash,
		}
	}
	versions = append(versions, current) // last version stays open

	return versions
}

func sortObservations(obs []entity.Observation) {
	// Insertion sort is fine at the batch sizes rebuild operates on
	// (single-entity observation history); stability on timestamp ties is
	// resolved explicitly by comparing hash bytes, not insertion order.
	for i := 1; i < len(obs); i++ {
		for j := i; j > 0 && observationLess(obs[j], obs[j-1]); j-- {
			obs[j], obs[j-1] = obs[j-1], obs[j]
		}
	}
}

func observationLess(a, b entity.Observation) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return bytes.Compare(a.Hash[:], b.Hash[:]) < 0
}
