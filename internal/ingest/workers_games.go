package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/albapepper/chron/internal/domain"
	"github.com/albapepper/chron/internal/entity"
)

// PollGameDays fetches the current season's day list, then polls every
// non-completed game's static record once per tick.
type PollGameDays struct{}

func (PollGameDays) Name() string            { return "PollGameDays" }
func (PollGameDays) Interval() time.Duration { return 5 * time.Minute }

func (PollGameDays) Tick(ctx context.Context, wc *Context) error {
	timeData, err := wc.TryUpdateTime(ctx)
	if err != nil {
		return fmt.Errorf("update time: %w", err)
	}
	var t domain.TimeDocument
	if err := json.Unmarshal(timeData, &t); err != nil {
		return fmt.Errorf("parse time document: %w", err)
	}

	seasonResp, ok, err := wc.Upstream.Season(ctx, fmt.Sprintf("%d", t.SeasonNumber))
	if err != nil {
		return fmt.Errorf("fetch season: %w", err)
	}
	if !ok {
		return nil
	}
	seasonData, err := wc.FetchAndSave(ctx, seasonResp, entity.KindSchedule, fmt.Sprintf("season-%d", t.SeasonNumber))
	if err != nil {
		return err
	}
	var season domain.SeasonDocument
	if err := json.Unmarshal(seasonData, &season); err != nil {
		return fmt.Errorf("parse season document: %w", err)
	}

	ProcessManyWithProgress(ctx, wc, season.DayIDs, 3, "fetch days", fetchDay)

	games, err := nonCompleteGamesForSeason(ctx, wc, t.SeasonNumber)
	if err != nil {
		return fmt.Errorf("list non-complete games: %w", err)
	}
	ProcessManyWithProgress(ctx, wc, games, 5, "refresh games", refreshGame)
	return nil
}

func fetchDay(ctx context.Context, wc *Context, dayID string) error {
	resp, ok, err := wc.Upstream.Day(ctx, dayID)
	if err != nil {
		return fmt.Errorf("fetch day %s: %w", dayID, err)
	}
	if !ok {
		return nil
	}
	data, err := wc.FetchAndSave(ctx, resp, entity.KindSchedule, "day-"+dayID)
	if err != nil {
		return err
	}
	var day domain.DayDocument
	if err := json.Unmarshal(data, &day); err != nil {
		return fmt.Errorf("parse day %s: %w", dayID, err)
	}
	ProcessManyWithProgress(ctx, wc, day.GameIDs, 5, "fetch games for day", refreshGame)
	return nil
}

func refreshGame(ctx context.Context, wc *Context, gameID string) error {
	resp, ok, err := wc.Upstream.Game(ctx, gameID)
	if err != nil {
		return fmt.Errorf("fetch game %s: %w", gameID, err)
	}
	if !ok {
		return nil
	}
	data, err := wc.FetchAndSave(ctx, resp, entity.KindGame, gameID)
	if err != nil {
		return err
	}
	var g domain.GameDocument
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("parse game %s: %w", gameID, err)
	}
	_, err = wc.Pool.Exec(ctx, "game_upsert",
		gameID, g.Season, g.Day, g.HomeTeamID, g.AwayTeamID, g.State, g.EventCount, []byte(data))
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", gameID, err)
	}
	return nil
}

func nonCompleteGamesForSeason(ctx context.Context, wc *Context, season int) ([]domain.Game, error) {
	rows, err := wc.Pool.Query(ctx, "games_by_season_not_complete", season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.GameID, &g.Season, &g.Day, &g.HomeTeamID, &g.AwayTeamID, &g.State, &g.EventCount); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// PollLiveGames fetches an incremental play-by-play delta for every
// in-progress game (ground: original_source's PollLiveGames).
type PollLiveGames struct{}

func (PollLiveGames) Name() string            { return "PollLiveGames" }
func (PollLiveGames) Interval() time.Duration { return 30 * time.Second }

func (PollLiveGames) Tick(ctx context.Context, wc *Context) error {
	timeData, err := wc.TryUpdateTime(ctx)
	if err != nil {
		return fmt.Errorf("update time: %w", err)
	}
	var t domain.TimeDocument
	if err := json.Unmarshal(timeData, &t); err != nil {
		return fmt.Errorf("parse time document: %w", err)
	}

	games, err := nonCompleteGamesForSeason(ctx, wc, t.SeasonNumber)
	if err != nil {
		return fmt.Errorf("list live games: %w", err)
	}
	ProcessManyWithProgress(ctx, wc, games, 20, "fetch live games", pollLiveGame)
	return nil
}

func pollLiveGame(ctx context.Context, wc *Context, game domain.Game) error {
	resp, ok, err := wc.Upstream.GameLive(ctx, game.GameID, game.EventCount)
	if err != nil {
		return fmt.Errorf("fetch live delta for %s: %w", game.GameID, err)
	}
	if !ok {
		return nil
	}

	var live domain.LiveResponse
	if err := json.Unmarshal(resp.Body, &live); err != nil {
		return fmt.Errorf("decode live delta for %s: %w", game.GameID, err)
	}
	if len(live.Entries) == 0 {
		return nil
	}

	if err := saveGameEvents(ctx, wc, game, resp.TimestampBefore, live.Entries, game.EventCount); err != nil {
		return err
	}

	newState := game.State
	for _, raw := range live.Entries {
		var evt domain.GameEvent
		if json.Unmarshal(raw, &evt) == nil && evt.IsGameOver() {
			newState = "Complete"
			break
		}
	}

	_, err = wc.Pool.Exec(ctx, "game_upsert",
		game.GameID, game.Season, game.Day, game.HomeTeamID, game.AwayTeamID, newState,
		game.EventCount+len(live.Entries), live.Entries[len(live.Entries)-1])
	if err != nil {
		return fmt.Errorf("update game %s after live delta: %w", game.GameID, err)
	}

	if newState == "Complete" {
		// games_by_season_not_complete excludes state='Complete', so this is
		// the last chance to capture final stats (ground: original_source
		// games.rs poll_live_game, "if new_state == Complete { poll_game_by_id }").
		if err := refreshGame(ctx, wc, game.GameID); err != nil {
			return fmt.Errorf("refresh completed game %s: %w", game.GameID, err)
		}
	}
	return nil
}

// saveGameEvents persists each new play-by-play entry, resolving
// pitcher/batter free-text names against the home/away roster as it stood at
// the response timestamp — never the live, still-updating roster, which
// would make enrichment depend on ingestion timing (spec.md §4.H).
func saveGameEvents(ctx context.Context, wc *Context, game domain.Game, observedAt time.Time, entries []json.RawMessage, startIndex int) error {
	homeTeam, homeErr := teamDocumentAt(ctx, wc, game.HomeTeamID, observedAt)
	awayTeam, awayErr := teamDocumentAt(ctx, wc, game.AwayTeamID, observedAt)
	if homeErr != nil {
		wc.Logger.Warn("could not resolve home roster for enrichment", "game_id", game.GameID, "err", homeErr)
	}
	if awayErr != nil {
		wc.Logger.Warn("could not resolve away roster for enrichment", "game_id", game.GameID, "err", awayErr)
	}

	for i, raw := range entries {
		index := startIndex + i

		var evt domain.GameEvent
		var pitcherID, batterID string
		if err := json.Unmarshal(raw, &evt); err != nil {
			wc.Logger.Warn("could not parse game event", "game_id", game.GameID, "index", index, "err", err)
		} else {
			pitchingTeam, battingTeam := homeTeam, awayTeam
			if evt.InningSide != 0 {
				pitchingTeam, battingTeam = awayTeam, homeTeam
			}
			pitcherID = resolveParticipant(pitchingTeam, evt.Pitcher, "Pitcher")
			batterID = resolveParticipant(battingTeam, evt.Batter, "Batter")
		}

		_, err := wc.Pool.Exec(ctx, "game_event_upsert",
			game.GameID, index, []byte(raw), nullableString(pitcherID), nullableString(batterID),
			observedAt, game.Season, game.Day)
		if err != nil {
			return fmt.Errorf("upsert game event %s/%d: %w", game.GameID, index, err)
		}
	}
	return nil
}

// resolveParticipant resolves a free-text name against a single roster — the
// pitching team for a pitcher, the batting team for a batter, chosen by the
// event's inning side (ground: original_source games.rs save_game_events,
// which looks a name up only on its own team's roster, never both).
func resolveParticipant(team *domain.TeamDocument, name, positionType string) string {
	if name == "" || team == nil {
		return ""
	}
	id, _ := team.FindPlayerByName(name, positionType)
	return id
}

func teamDocumentAt(ctx context.Context, wc *Context, teamID string, at time.Time) (*domain.TeamDocument, error) {
	var data []byte
	err := wc.Pool.QueryRow(ctx, "team_by_id_at", int16(entity.KindTeam), teamID, at).Scan(&data)
	if err != nil {
		return nil, err
	}
	var team domain.TeamDocument
	if err := json.Unmarshal(data, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HandleEventGames pulls featured/event game ids from the upstream
// /api/superstar-games endpoint (not from the state document) and polls them (and their rosters) regardless of the normal day/season
// schedule, so spotlight games stay fresh even off-cycle.
type HandleEventGames struct{}

func (HandleEventGames) Name() string            { return "HandleEventGames" }
func (HandleEventGames) Interval() time.Duration { return 5 * time.Minute }

func (HandleEventGames) Tick(ctx context.Context, wc *Context) error {
	resp, err := wc.Upstream.SuperstarGames(ctx)
	if err != nil {
		return fmt.Errorf("fetch superstar games: %w", err)
	}

	var gameIDs []string
	if err := json.Unmarshal(resp.Body, &gameIDs); err != nil {
		return fmt.Errorf("decode superstar games: %w", err)
	}

	ProcessManyWithProgress(ctx, wc, gameIDs, 5, "fetch event games", refreshEventGame)
	return nil
}

func refreshEventGame(ctx context.Context, wc *Context, gameID string) error {
	if err := refreshGame(ctx, wc, gameID); err != nil {
		return err
	}

	resp, ok, err := wc.Upstream.Game(ctx, gameID)
	if err != nil || !ok {
		return err
	}
	var g domain.GameDocument
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return fmt.Errorf("parse event game %s: %w", gameID, err)
	}
	for _, teamID := range []string{g.HomeTeamID, g.AwayTeamID} {
		if teamID == "" {
			continue
		}
		if err := fetchTeam(ctx, wc, teamID); err != nil {
			wc.Logger.Warn("could not refresh roster for event game", "game_id", gameID, "team_id", teamID, "err", err)
		}
	}
	return nil
}
