package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/chron/internal/domain"
	"github.com/albapepper/chron/internal/entity"
	"github.com/albapepper/chron/internal/geocode"
	"github.com/albapepper/chron/internal/store"
	"github.com/albapepper/chron/internal/upstream"
)

// PollMessage fetches the short broadcast "message of the day" endpoint.
type PollMessage struct{}

func (PollMessage) Name() string            { return "PollMessage" }
func (PollMessage) Interval() time.Duration { return 5 * time.Second }

func (PollMessage) Tick(ctx context.Context, wc *Context) error {
	resp, err := wc.Upstream.Message(ctx)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}
	_, err = wc.FetchAndSave(ctx, resp, entity.KindMessage, "message")
	return err
}

// RefreshMatviews concurrently refreshes a fixed list of materialized views
// under a single advisory lock key, so overlapping ticks (for example from
// two ingest processes) never refresh the same view twice at once; a view
// whose lock is already held is skipped for that tick.
type RefreshMatviews struct {
	Period time.Duration
}

func (w RefreshMatviews) Name() string            { return "RefreshMatviews" }
func (w RefreshMatviews) Interval() time.Duration { return w.Period }

// MaterializedViews is the closed list of views this worker maintains.
var MaterializedViews = []string{
	"players",
	"team_feeds",
	"rosters",
	"roster_slot_history",
	"game_player_stats_exploded",
	"game_player_stats_league_aggregate",
	"game_player_stats_global_aggregate",
	"pitches",
}

// matviewAdvisoryLockKey is an arbitrary fixed key scoping the advisory lock
// to matview refreshes specifically, so it never collides with an unrelated
// use of pg_try_advisory_xact_lock elsewhere in the schema.
const matviewAdvisoryLockKey = 0x13371337

func (RefreshMatviews) Tick(ctx context.Context, wc *Context) error {
	for _, view := range MaterializedViews {
		if err := refreshOneMatview(ctx, wc, view); err != nil {
			return err
		}
	}
	return nil
}

func refreshOneMatview(ctx context.Context, wc *Context, view string) error {
	tx, err := wc.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin matview refresh tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", int64(matviewAdvisoryLockKey)).Scan(&locked); err != nil {
		return fmt.Errorf("acquire matview advisory lock: %w", err)
	}
	if !locked {
		wc.Logger.Warn("could not claim advisory lock for matview refresh, skipping this cycle")
		return nil
	}

	start := time.Now()
	// view is drawn exclusively from the fixed MaterializedViews slice above,
	// never from request input, so interpolating it here is not an injection
	// surface — REFRESH MATERIALIZED VIEW cannot take its target as a bind
	// parameter.
	if _, err := tx.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
		return fmt.Errorf("refresh matview %s: %w", view, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit matview refresh %s: %w", view, err)
	}

	wc.Logger.Info("refreshed matview", "view", view, "elapsed", time.Since(start))
	return nil
}

// LookupMapLocations resolves every archived team's free-text location to
// geocoordinates via the geocoding client, caching results in the locations
// table so a location is ever looked up once.
type LookupMapLocations struct{}

func (LookupMapLocations) Name() string            { return "LookupMapLocations" }
func (LookupMapLocations) Interval() time.Duration { return 60 * time.Second }

func (LookupMapLocations) Tick(ctx context.Context, wc *Context) error {
	if wc.Geocoder == nil {
		return nil // no API key configured; this worker is a no-op
	}

	rows, err := wc.Pool.Query(ctx, "all_latest_by_kind", int16(entity.KindTeam))
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var (
			teamID string
			data   []byte
		)
		if err := rows.Scan(&teamID, &data); err != nil {
			return err
		}
		var team domain.TeamDocument
		if err := json.Unmarshal(data, &team); err != nil {
			continue
		}
		if team.FullLocation != "" {
			locations = append(locations, team.FullLocation)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ProcessMany(ctx, wc, locations, 1, resolveLocation) // sequential: shared Places session budget
	return nil
}

func resolveLocation(ctx context.Context, wc *Context, location string) error {
	normalized := geocode.Normalize(location)

	var existing []byte
	err := wc.Pool.QueryRow(ctx, "location_lookup", normalized).Scan(&existing)
	if err == nil {
		return nil // already cached, including a cached "no match" null
	}
	if !store.IsNoRows(err) {
		return fmt.Errorf("location lookup %s: %w", normalized, err)
	}

	data, err := wc.Geocoder.Lookup(ctx, location)
	if err != nil {
		return fmt.Errorf("geocode %s: %w", location, err)
	}
	if data == nil {
		data = json.RawMessage("null")
	}

	_, err = wc.Pool.Exec(ctx, "location_upsert", normalized, []byte(data))
	if err != nil {
		return fmt.Errorf("cache location %s: %w", normalized, err)
	}
	return nil
}

// ProcessFeeds scans every player's and team's narrative feed sub-tree and
// extracts (timestamp, player_id, player_name) triples into player_name_map,
// a best-effort historical record of observed display names (spec.md §3,
// §9 — fallback, not authoritative).
type ProcessFeeds struct{}

func (ProcessFeeds) Name() string            { return "ProcessFeeds" }
func (ProcessFeeds) Interval() time.Duration { return 5 * time.Minute }

const feedNameMapChunkSize = 1000

func (ProcessFeeds) Tick(ctx context.Context, wc *Context) error {
	playerIDs, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindPlayer)
	if err != nil {
		return fmt.Errorf("list player ids: %w", err)
	}
	teamIDs, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindTeam)
	if err != nil {
		return fmt.Errorf("list team ids: %w", err)
	}

	var entries []playerNameEntry
	for _, id := range playerIDs {
		resp, ok, err := wc.Upstream.FeedFor(ctx, upstream.FeedForPlayer, id)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, extractPlayerNames(wc, resp.Body)...)
	}
	for _, id := range teamIDs {
		resp, ok, err := wc.Upstream.FeedFor(ctx, upstream.FeedForTeam, id)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, extractPlayerNames(wc, resp.Body)...)
	}

	for start := 0; start < len(entries); start += feedNameMapChunkSize {
		end := min(start+feedNameMapChunkSize, len(entries))
		if err := insertNameMapChunk(ctx, wc, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type playerNameEntry struct {
	Timestamp time.Time
	PlayerID  string
	Name      string
}

func extractPlayerNames(wc *Context, body []byte) []playerNameEntry {
	var holder domain.FeedHolder
	if err := json.Unmarshal(body, &holder); err != nil {
		wc.Logger.Warn("could not parse feed", "err", err)
		return nil
	}

	var out []playerNameEntry
	for _, feedEntry := range holder.Feed {
		var firstPlayerLink *domain.FeedLink
		for i := range feedEntry.Links {
			if feedEntry.Links[i].Kind == "player" && firstPlayerLink == nil {
				firstPlayerLink = &feedEntry.Links[i]
			}
		}
		for _, link := range feedEntry.Links {
			if link.Kind != "player" {
				continue
			}
			playerID := link.ID
			if strings.Contains(feedEntry.Text, " was Recomposed into ") && firstPlayerLink != nil {
				playerID = firstPlayerLink.ID
			}
			if playerID == "" || link.String == "" {
				continue
			}
			out = append(out, playerNameEntry{
				Timestamp: time.Unix(feedEntry.Timestamp, 0).UTC(),
				PlayerID:  playerID,
				Name:      link.String,
			})
		}
	}
	return out
}

func insertNameMapChunk(ctx context.Context, wc *Context, chunk []playerNameEntry) error {
	timestamps := make([]time.Time, len(chunk))
	ids := make([]string, len(chunk))
	names := make([]string, len(chunk))
	for i, e := range chunk {
		timestamps[i] = e.Timestamp
		ids[i] = e.PlayerID
		names[i] = e.Name
	}
	_, err := wc.Pool.Exec(ctx,
		"INSERT INTO player_name_map (timestamp, player_id, player_name) "+
			"SELECT unnest($1::timestamptz[]), unnest($2::text[]), unnest($3::text[]) ON CONFLICT (timestamp, player_id) DO NOTHING",
		timestamps, ids, names)
	if err != nil {
		return fmt.Errorf("insert player_name_map chunk: %w", err)
	}
	return nil
}
