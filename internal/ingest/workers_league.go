package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/albapepper/chron/internal/domain"
	"github.com/albapepper/chron/internal/entity"
)

// PollLeague fetches the global state and spotlight documents, then fans out
// to every league and every known team (ground: original_source
// workers/league.rs poll_league).
type PollLeague struct{}

func (PollLeague) Name() string           { return "PollLeague" }
func (PollLeague) Interval() time.Duration { return 10 * time.Minute }

func (PollLeague) Tick(ctx context.Context, wc *Context) error {
	stateResp, err := wc.Upstream.State(ctx)
	if err != nil {
		return fmt.Errorf("fetch state: %w", err)
	}
	stateData, err := wc.FetchAndSave(ctx, stateResp, entity.KindState, "state")
	if err != nil {
		return err
	}

	if spotlightResp, err := wc.Upstream.Spotlight(ctx); err == nil {
		_, _ = wc.FetchAndSave(ctx, spotlightResp, entity.KindMessage, "spotlight")
	} else {
		wc.Logger.Warn("fetch spotlight failed", "err", err)
	}

	if _, err := wc.TryUpdateTime(ctx); err != nil {
		wc.Logger.Warn("update time failed", "err", err)
	}

	var state domain.StateDocument
	if err := json.Unmarshal(stateData, &state); err != nil {
		return fmt.Errorf("parse state document: %w", err)
	}

	ProcessManyWithProgress(ctx, wc, state.AllLeagueIDs(), 3, "fetch leagues", fetchLeague)

	teamIDs, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindTeam)
	if err != nil {
		return fmt.Errorf("list known team ids: %w", err)
	}
	ProcessManyWithProgress(ctx, wc, teamIDs, 3, "fetch teams", fetchTeam)

	return nil
}

// fetchLeague saves the league document, then immediately fetches any team
// it references that isn't archived yet — the only path by which a
// brand-new team ever enters the archive, since the team refresh above only
// revisits teams already known.
func fetchLeague(ctx context.Context, wc *Context, id string) error {
	resp, ok, err := wc.Upstream.League(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch league %s: %w", id, err)
	}
	if !ok {
		return nil
	}
	data, err := wc.FetchAndSave(ctx, resp, entity.KindLeague, id)
	if err != nil {
		return err
	}
	if err := upsertLeague(ctx, wc, id, data, resp.TimestampBefore); err != nil {
		return err
	}

	var league domain.LeagueDocument
	if err := json.Unmarshal(data, &league); err != nil {
		wc.Logger.Warn("could not parse league document for team discovery", "league_id", id, "err", err)
		return nil
	}

	known, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindTeam)
	if err != nil {
		return fmt.Errorf("list known team ids: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, t := range known {
		knownSet[t] = struct{}{}
	}

	var newTeamIDs []string
	for _, teamID := range league.TeamIDs {
		if _, ok := knownSet[teamID]; !ok {
			newTeamIDs = append(newTeamIDs, teamID)
		}
	}
	ProcessManyWithProgress(ctx, wc, newTeamIDs, 3, "fetch new teams", fetchTeam)
	return nil
}

func fetchTeam(ctx context.Context, wc *Context, id string) error {
	resp, ok, err := wc.Upstream.Team(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch team %s: %w", id, err)
	}
	if !ok {
		return nil
	}
	data, err := wc.FetchAndSave(ctx, resp, entity.KindTeam, id)
	if err != nil {
		return err
	}
	return upsertTeam(ctx, wc, id, data, resp.TimestampBefore)
}

func upsertLeague(ctx context.Context, wc *Context, id string, data json.RawMessage, observedAt time.Time) error {
	_, err := wc.Pool.Exec(ctx, "league_upsert", id, []byte(data), observedAt)
	if err != nil {
		return fmt.Errorf("upsert league %s: %w", id, err)
	}
	return nil
}

func upsertTeam(ctx context.Context, wc *Context, id string, data json.RawMessage, observedAt time.Time) error {
	_, err := wc.Pool.Exec(ctx, "team_upsert", id, []byte(data), observedAt)
	if err != nil {
		return fmt.Errorf("upsert team %s: %w", id, err)
	}
	return nil
}

// PollNewPlayers diffs the set of player ids observed via team rosters
// against the set already archived, and fetches only the new ones.
type PollNewPlayers struct{}

func (PollNewPlayers) Name() string            { return "PollNewPlayers" }
func (PollNewPlayers) Interval() time.Duration { return 60 * time.Second }

func (PollNewPlayers) Tick(ctx context.Context, wc *Context) error {
	knownRosterIDs, err := allKnownPlayerIDs(ctx, wc)
	if err != nil {
		return fmt.Errorf("list known roster player ids: %w", err)
	}

	archivedIDs, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindPlayer)
	if err != nil {
		return fmt.Errorf("list archived player ids: %w", err)
	}
	archived := make(map[string]struct{}, len(archivedIDs))
	for _, id := range archivedIDs {
		archived[id] = struct{}{}
	}

	var newIDs []string
	for _, id := range knownRosterIDs {
		if _, ok := archived[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}

	ProcessManyWithProgress(ctx, wc, newIDs, 3, "fetch new players", fetchPlayer)
	return nil
}

func fetchPlayer(ctx context.Context, wc *Context, id string) error {
	resp, ok, err := wc.Upstream.Player(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch player %s: %w", id, err)
	}
	if !ok {
		return nil
	}
	_, err = wc.FetchAndSave(ctx, resp, entity.KindPlayer, id)
	return err
}

// allKnownPlayerIDs unions the roster lists of every archived team into one
// deduplicated player id set.
func allKnownPlayerIDs(ctx context.Context, wc *Context) ([]string, error) {
	rows, err := wc.Pool.Query(ctx, "all_latest_by_kind", int16(entity.KindTeam))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var (
			teamID string
			data   []byte
		)
		if err := rows.Scan(&teamID, &data); err != nil {
			return nil, err
		}
		var team domain.TeamDocument
		if err := json.Unmarshal(data, &team); err != nil {
			wc.Logger.Warn("skip unparseable team roster", "team_id", teamID, "err", err)
			continue
		}
		for _, slot := range team.Players {
			seen[slot.PlayerID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

// PollAllPlayers refreshes every known player in bulk, chunked through the
// batch /api/players endpoint (ground: original_source's fetch_all_players,
// spec.md "100-id chunks via bulk endpoint").
type PollAllPlayers struct{}

func (PollAllPlayers) Name() string            { return "PollAllPlayers" }
func (PollAllPlayers) Interval() time.Duration { return 10 * time.Minute }

const playerBulkChunkSize = 100

func (PollAllPlayers) Tick(ctx context.Context, wc *Context) error {
	ids, err := wc.Obs.DistinctEntityIDs(ctx, entity.KindPlayer)
	if err != nil {
		return fmt.Errorf("list player ids: %w", err)
	}

	var chunks [][]string
	for i := 0; i < len(ids); i += playerBulkChunkSize {
		end := min(i+playerBulkChunkSize, len(ids))
		chunks = append(chunks, ids[i:end])
	}

	ProcessManyWithProgress(ctx, wc, chunks, 3, "fetch player chunks", fetchPlayerChunk)
	return nil
}

func fetchPlayerChunk(ctx context.Context, wc *Context, ids []string) error {
	resp, err := wc.Upstream.Players(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch player chunk: %w", err)
	}

	var players []json.RawMessage
	if err := json.Unmarshal(resp.Body, &players); err != nil {
		return fmt.Errorf("decode player chunk: %w", err)
	}

	hashes, err := wc.Content.PutBulk(ctx, players)
	if err != nil {
		return fmt.Errorf("store player chunk: %w", err)
	}

	obs := make([]entity.Observation, len(players))
	for i, id := range ids {
		if i >= len(hashes) {
			break
		}
		obs[i] = entity.Observation{
			Kind:           entity.KindPlayer,
			EntityID:       id,
			Timestamp:      resp.TimestampBefore,
			RequestElapsed: resp.Elapsed(),
			Hash:           hashes[i],
		}
	}
	if err := wc.Obs.InsertBulk(ctx, obs); err != nil {
		return fmt.Errorf("bulk insert player observations: %w", err)
	}
	for _, o := range obs {
		if err := wc.Versions.AddVersion(ctx, o.Kind, o.EntityID, o.Hash, o.Timestamp, o.RequestElapsed); err != nil {
			wc.Logger.Error("add_version failed in player chunk", "player_id", o.EntityID, "err", err)
		}
	}
	return nil
}
