// Package store implements the bitemporal versioned object store: the
// content-addressed blob store (§4.A), the append-only observation log
// (§4.B), and the incremental/rebuild version builder (§4.C).
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/entity"
	"github.com/albapepper/chron/internal/hashing"
)

// hashOutcome is the unit of work handed to the canonicalization pool: a
// hashed-and-persisted object, or the error that stopped it.
type hashOutcome struct {
	hash entity.Hash
	err  error
}

// ContentStore is the hash-addressed immutable JSON blob store. Puts are
// deduplicated in two layers: a process-wide seenHashes set short-circuits
// redundant round-trips, and the backing insert uses ON CONFLICT DO NOTHING
// as the ground truth.
type ContentStore struct {
	pool     *dbpool.Pool
	hashPool pond.ResultPool[hashOutcome]

	seen sync.Map // entity.Hash -> struct{}
}

// NewContentStore constructs a store backed by pool, running
// canonicalization and hashing on a bounded worker pool distinct from the
// caller's goroutine so large-document CPU work never starves request
// handling or ingestion ticks — ground: original_source's save_object
// dispatching json_hash onto spawn_blocking.
func NewContentStore(pool *dbpool.Pool) *ContentStore {
	return &ContentStore{
		pool:     pool,
		hashPool: pond.NewResultPool[hashOutcome](8),
	}
}

// Put canonicalizes payload, hashes it, and inserts it if not already known.
// Two calls with recursively-equal JSON (any object key permutation) return
// the same hash, per §4.A guarantee (i).
func (s *ContentStore) Put(ctx context.Context, payload json.RawMessage) (entity.Hash, error) {
	task := s.hashPool.Submit(func() hashOutcome {
		hash, canonical, err := hashing.ContentHash(payload)
		if err != nil {
			return hashOutcome{err: err}
		}
		return hashOutcome{hash: hash, err: s.insertIfUnseen(ctx, hash, canonical)}
	})
	outcome, err := task.Wait()
	if err != nil {
		return entity.Hash{}, fmt.Errorf("content store put: %w", err)
	}
	if outcome.err != nil {
		return entity.Hash{}, outcome.err
	}
	return outcome.hash, nil
}

// insertIfUnseen inserts the canonical payload under hash. On this
// process's first encounter with hash, ON CONFLICT DO NOTHING may mean a
// different payload already claimed it — RETURNING reports whether this
// call's row was actually the one stored, and if not, the existing bytes
// are read back and byte-compared against canonical. A mismatch is a real
// hash collision (spec.md Open Questions: "an implementer may wish to add
// a first-read byte-comparison guard"), not merely an already-seen object.
func (s *ContentStore) insertIfUnseen(ctx context.Context, hash entity.Hash, canonical json.RawMessage) error {
	if _, ok := s.seen.Load(hash); ok {
		return nil
	}

	var stored []byte
	err := s.pool.QueryRow(ctx, "object_insert", hash[:], []byte(canonical)).Scan(&stored)
	if err != nil {
		if !isNoRows(err) {
			return fmt.Errorf("insert object: %w", err)
		}

		var existing []byte
		if err := s.pool.QueryRow(ctx, "object_get", hash[:]).Scan(&existing); err != nil {
			return fmt.Errorf("read existing object on conflict: %w", err)
		}
		if !bytes.Equal(existing, canonical) {
			return fmt.Errorf("hash collision detected for %x: stored payload differs from canonical bytes", hash)
		}
	}

	s.seen.Store(hash, struct{}{})
	return nil
}

// PutBulk canonicalizes and hashes every payload off the I/O path, then
// issues one bulk insert with ON CONFLICT DO NOTHING — the §4.A bulk
// operation used by fan-out ingestion of chunked upstream responses.
func (s *ContentStore) PutBulk(ctx context.Context, payloads []json.RawMessage) ([]entity.Hash, error) {
	hashes := make([]entity.Hash, len(payloads))
	canonicals := make([][]byte, len(payloads))

	tasks := make([]pond.Task[hashOutcome], len(payloads))
	for i, payload := range payloads {
		i, payload := i, payload
		tasks[i] = s.hashPool.Submit(func() hashOutcome {
			hash, canonical, err := hashing.ContentHash(payload)
			if err != nil {
				return hashOutcome{err: err}
			}
			canonicals[i] = canonical
			return hashOutcome{hash: hash}
		})
	}
	for i, task := range tasks {
		outcome, err := task.Wait()
		if err != nil {
			return nil, fmt.Errorf("canonicalize bulk item %d: %w", i, err)
		}
		if outcome.err != nil {
			return nil, fmt.Errorf("canonicalize bulk item %d: %w", i, outcome.err)
		}
		hashes[i] = outcome.hash
	}

	hashBytes := make([][]byte, len(hashes))
	for i, h := range hashes {
		hashBytes[i] = h[:]
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO objects (hash, data) SELECT unnest($1::bytea[]), unnest($2::bytea[]) ON CONFLICT DO NOTHING",
		hashBytes, canonicals)
	if err != nil {
		return nil, fmt.Errorf("bulk insert objects: %w", err)
	}
	for _, h := range hashes {
		s.seen.Store(h, struct{}{})
	}
	return hashes, nil
}

// Get fetches the canonical payload for hash, if present.
func (s *ContentStore) Get(ctx context.Context, hash entity.Hash) (json.RawMessage, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "object_get", hash[:]).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get object: %w", err)
	}
	return json.RawMessage(data), true, nil
}
