// Package ingest implements the ingestion scheduler (§4.G) and its fleet of
// periodic workers (§4.H): independent-interval pollers that fetch upstream
// documents, persist them through the content store / observation log /
// version builder, and maintain the derived domain tables.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/albapepper/chron/internal/config"
	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/derive"
	"github.com/albapepper/chron/internal/entity"
	"github.com/albapepper/chron/internal/geocode"
	"github.com/albapepper/chron/internal/httpclient"
	"github.com/albapepper/chron/internal/store"
	"github.com/albapepper/chron/internal/upstream"
)

// Context is the shared handle every worker tick receives: the storage
// triad (content store, observation log, version builder), the upstream and
// geocoding clients, and configuration. One Context is built at startup and
// the same *Context is shared by every worker goroutine.
type Context struct {
	Config   *config.Config
	Pool     *dbpool.Pool
	Content  *store.ContentStore
	Obs      *store.ObservationLog
	Versions *store.VersionBuilder
	Upstream *upstream.Client
	Geocoder *geocode.Client
	Logger   *slog.Logger
}

// FetchAndSave persists an already-fetched response body through the
// content store and observation log, folds it into the version timeline,
// runs derivation on it (a derivation failure is logged, not returned), and
// returns the body — the per-entity ingest workflow of spec.md §4.H.
func (c *Context) FetchAndSave(ctx context.Context, resp *httpclient.Response, kind entity.Kind, entityID string) (json.RawMessage, error) {
	hash, err := c.Content.Put(ctx, json.RawMessage(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("save %s/%s: %w", kind, entityID, err)
	}

	obs := entity.Observation{
		Kind:           kind,
		EntityID:       entityID,
		Timestamp:      resp.TimestampBefore,
		RequestElapsed: resp.Elapsed(),
		Hash:           hash,
	}
	if err := c.Obs.InsertOne(ctx, obs); err != nil {
		return nil, fmt.Errorf("save %s/%s: %w", kind, entityID, err)
	}
	if err := c.Versions.AddVersion(ctx, kind, entityID, hash, obs.Timestamp, obs.RequestElapsed); err != nil {
		return nil, fmt.Errorf("save %s/%s: %w", kind, entityID, err)
	}

	if err := c.saveDerived(ctx, kind, entityID, json.RawMessage(resp.Body), obs.Timestamp, obs.RequestElapsed); err != nil {
		c.Logger.Warn("derivation failed", "kind", kind, "entity_id", entityID, "err", err)
	}

	return json.RawMessage(resp.Body), nil
}

// saveDerived runs the derivation pipeline (§4.I) on a just-saved document
// and persists each derived (kind, id, payload) triple through the same
// content-store/observation-log/version-builder path, sharing the source
// document's fetch timestamp (spec.md §4.H step 5).
func (c *Context) saveDerived(ctx context.Context, kind entity.Kind, entityID string, data json.RawMessage, ts time.Time, elapsed time.Duration) error {
	docs, err := derive.From(kind, entityID, data)
	if err != nil {
		return fmt.Errorf("derive from %s/%s: %w", kind, entityID, err)
	}
	for _, doc := range docs {
		hash, err := c.Content.Put(ctx, doc.Data)
		if err != nil {
			return fmt.Errorf("save derived %s/%s: %w", doc.Kind, doc.ID, err)
		}
		if err := c.Obs.InsertOne(ctx, entity.Observation{
			Kind:           doc.Kind,
			EntityID:       doc.ID,
			Timestamp:      ts,
			RequestElapsed: elapsed,
			Hash:           hash,
		}); err != nil {
			return fmt.Errorf("save derived %s/%s: %w", doc.Kind, doc.ID, err)
		}
		if err := c.Versions.AddVersion(ctx, doc.Kind, doc.ID, hash, ts, elapsed); err != nil {
			return fmt.Errorf("save derived %s/%s: %w", doc.Kind, doc.ID, err)
		}
	}
	return nil
}

// RebuildDerived replays the most recent observation of every archived
// Player and Team entity through the derivation pipeline and rebuilds the
// derived kinds' version timelines from scratch — the bulk/offline
// counterpart to the synchronous path in FetchAndSave, used by
// `cmd/ingest rebuild-derived`. Earlier observations of an entity are not
// replayed.
func (c *Context) RebuildDerived(ctx context.Context) error {
	for _, kind := range []entity.Kind{entity.KindPlayer, entity.KindTeam} {
		ids, err := c.Obs.DistinctEntityIDs(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s ids: %w", kind, err)
		}
		for _, id := range ids {
			data, fetchedAt, ok, err := c.latestObservedAny(ctx, kind, id)
			if err != nil {
				return fmt.Errorf("load latest %s/%s: %w", kind, id, err)
			}
			if !ok {
				continue
			}
			if err := c.saveDerived(ctx, kind, id, data, fetchedAt, 0); err != nil {
				c.Logger.Error("rebuild-derived failed", "kind", kind, "entity_id", id, "err", err)
			}
		}
	}

	for _, derivedKind := range []entity.Kind{
		entity.KindTeamLite, entity.KindPlayerLite,
		entity.KindTalk, entity.KindTalkBatting, entity.KindTalkPitching,
		entity.KindTalkBaserunning, entity.KindTalkDefense,
	} {
		if err := c.Versions.RebuildAll(ctx, derivedKind); err != nil {
			return fmt.Errorf("rebuild derived versions for %s: %w", derivedKind, err)
		}
	}
	return nil
}

func (c *Context) latestObservedAny(ctx context.Context, kind entity.Kind, id string) (json.RawMessage, time.Time, bool, error) {
	var (
		data []byte
		ts   time.Time
	)
	err := c.Pool.QueryRow(ctx, "latest_observation_for_entity", int16(kind), id).Scan(&data, &ts)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, err
	}
	return json.RawMessage(data), ts, true, nil
}

// TryUpdateTime returns the cached /api/time document if it was fetched
// within the last 30s, otherwise re-fetches and saves it — ground:
// original_source's try_update_time buffer.
func (c *Context) TryUpdateTime(ctx context.Context) (json.RawMessage, error) {
	const freshness = 30 * time.Second

	latest, fetchedAt, ok, err := c.latestObservedTime(ctx)
	if err != nil {
		return nil, err
	}
	if ok && time.Since(fetchedAt) < freshness {
		return latest, nil
	}

	resp, err := c.Upstream.Time(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch time: %w", err)
	}
	return c.FetchAndSave(ctx, resp, entity.KindTime, "time")
}

func (c *Context) latestObservedTime(ctx context.Context) (json.RawMessage, time.Time, bool, error) {
	var (
		data []byte
		ts   time.Time
	)
	err := c.Pool.QueryRow(ctx,
		"SELECT o.data, ob.timestamp FROM observations ob JOIN objects o ON o.hash = ob.hash "+
			"WHERE ob.kind = $1 AND ob.entity_id = $2 ORDER BY ob.timestamp DESC LIMIT 1",
		int16(entity.KindTime), "time").Scan(&data, &ts)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("latest time observation: %w", err)
	}
	return json.RawMessage(data), ts, true, nil
}

// ProcessMany runs fn over values with up to parallel concurrent in flight,
// logging and swallowing any per-item error so one bad entity never blocks
// the rest (ground: original_source's buffer_unordered + per-item error
// logging).
func ProcessMany[T any](ctx context.Context, c *Context, values []T, parallel int, fn func(context.Context, *Context, T) error) {
	ProcessManyWithProgress(ctx, c, values, parallel, "", fn)
}

// ProcessManyWithProgress is ProcessMany plus periodic "processed N/M" log
// lines, throttled to every 10th item once the batch exceeds 1000 items.
func ProcessManyWithProgress[T any](ctx context.Context, c *Context, values []T, parallel int, name string, fn func(context.Context, *Context, T) error) {
	count := len(values)
	if count == 0 {
		return
	}
	progressEvery := 1
	if count > 1000 {
		progressEvery = 10
	}

	pool := pond.NewPool(parallel)
	group := pool.NewGroup()
	for i, v := range values {
		i, v := i, v
		group.SubmitErr(func() error {
			err := fn(ctx, c, v)
			if err != nil {
				c.Logger.Error("error processing item", "worker", name, "err", err)
				return nil // swallow: one bad entity must not abort the batch
			}
			if name != "" && i%progressEvery == 0 {
				c.Logger.Info("processing", "worker", name, "i", i, "count", count)
			}
			return nil
		})
	}
	_ = group.Wait()
	pool.StopAndWait()
}
