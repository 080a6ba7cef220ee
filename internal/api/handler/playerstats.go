package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/stats"
)

// allStatFields lists every summable field in game_player_stats_exploded,
// in the aggregator's declared order.
var allStatFields = []stats.Field{
	stats.FieldHits, stats.FieldDoubles, stats.FieldTriples, stats.FieldHomeRuns,
	stats.FieldWalks, stats.FieldStrikeouts, stats.FieldRuns, stats.FieldRunsBattedIn,
	stats.FieldStolenBases, stats.FieldCaughtStealing, stats.FieldHitByPitch,
	stats.FieldSacrificeFlies, stats.FieldPlateAppearances, stats.FieldAtBats,
	stats.FieldEarnedRuns, stats.FieldOutsRecorded, stats.FieldBattersFaced,
	stats.FieldPitchesThrown, stats.FieldWalksAllowed, stats.FieldHitsAllowed,
	stats.FieldHomeRunsAllowed, stats.FieldStrikeoutsThrown,
}

// parseSeasonDay parses a "season,day" query param into a stats.SeasonDay.
func parseSeasonDay(s string) (*stats.SeasonDay, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected \"season,day\", got %q", s)
	}
	season, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid season in %q: %w", s, err)
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid day in %q: %w", s, err)
	}
	return &stats.SeasonDay{Season: season, Day: day}, nil
}

type playerStatsEntry struct {
	PlayerID string         `json:"player_id"`
	TeamID   string         `json:"team_id"`
	Stats    map[string]int `json:"stats"`
}

// GetPlayerStats serves /player-stats: per-player stat totals, filtered to
// a player or a team (one is required) and optionally a season-day range.
// @Summary Per-player stat totals
// @Description Returns summed stats per (player, team), filtered by player or team.
// @Tags stats
// @Produce json
// @Param player query string false "Player id filter"
// @Param team query string false "Team id filter"
// @Param start query string false "Season-day range start, \"season,day\""
// @Param end query string false "Season-day range end, \"season,day\""
// @Success 200 {array} playerStatsEntry
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /player-stats [get]
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := q.Get("player")
	team := q.Get("team")
	if player == "" && team == "" {
		respond.WriteBadRequest(w, "one of player or team is required")
		return
	}

	start, err := parseSeasonDay(q.Get("start"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	end, err := parseSeasonDay(q.Get("end"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	req := stats.Request{
		Start:  start,
		End:    end,
		Player: player,
		Team:   team,
		Fields: allStatFields,
		Group:  []stats.GroupColumn{stats.GroupPlayer, stats.GroupTeam},
	}

	sql, args, err := stats.BuildQuery(req)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}

	rows, err := h.Pool.Query(r.Context(), sql, args...)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}
	defer rows.Close()

	entries := []playerStatsEntry{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			respond.WriteServerError(w, fmt.Errorf("scan player stats row: %w", err))
			return
		}
		if len(values) < 2+len(allStatFields) {
			respond.WriteServerError(w, fmt.Errorf("player stats row has %d columns, want %d", len(values), 2+len(allStatFields)))
			return
		}
		entry := playerStatsEntry{
			PlayerID: fmt.Sprintf("%v", values[0]),
			TeamID:   fmt.Sprintf("%v", values[1]),
			Stats:    make(map[string]int, len(allStatFields)),
		}
		for i, f := range allStatFields {
			n, _ := toInt(values[2+i])
			entry.Stats[string(f)] = n
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		respond.WriteServerError(w, err)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, entries)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// GetLeagueAggregateStats serves /league-aggregate-stats: the precomputed
// league-season stat rollup, SWR-cached per season since the underlying
// matview only refreshes on the periodic schedule.
// @Summary League aggregate stats
// @Description Returns the precomputed per-league stat rollup for a season.
// @Tags stats
// @Produce json
// @Param season query int true "Season number"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /league-aggregate-stats [get]
func (h *Handler) GetLeagueAggregateStats(w http.ResponseWriter, r *http.Request) {
	h.serveLeagueRollup(w, r, "aggregate")
}

// GetLeagueAverages serves /league-averages: the same rollup divided by
// player_count to produce per-player averages.
// @Summary League averages
// @Description Returns per-player stat averages for every league in a season.
// @Tags stats
// @Produce json
// @Param season query int true "Season number"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /league-averages [get]
func (h *Handler) GetLeagueAverages(w http.ResponseWriter, r *http.Request) {
	h.serveLeagueRollup(w, r, "averages")
}

var leagueRollupColumns = []string{
	"league_id", "season", "hits", "doubles", "triples", "home_runs", "walks",
	"strikeouts", "runs", "rbis", "stolen_bases", "caught_stealing",
	"plate_appearances", "at_bats", "earned_runs", "outs_recorded",
	"batters_faced", "player_count",
}

func (h *Handler) serveLeagueRollup(w http.ResponseWriter, r *http.Request, mode string) {
	season, err := strconv.Atoi(r.URL.Query().Get("season"))
	if err != nil {
		respond.WriteBadRequest(w, "season is required and must be an integer")
		return
	}

	key := fmt.Sprintf("league-rollup:%s:%d", mode, season)
	data, err := h.Agg.Get(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		return h.buildLeagueRollup(ctx, season, mode)
	})
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}

	respond.WriteJSON(w, data, respond.ComputeETag(data), h.Cfg.CacheDefaultTTL, false)
}

// buildLeagueRollup queries game_player_stats_league_aggregate for season
// and marshals it either as the raw sums ("aggregate") or as per-player
// averages ("averages", each sum divided by player_count).
func (h *Handler) buildLeagueRollup(ctx context.Context, season int, mode string) ([]byte, error) {
	rows, err := h.Pool.Query(ctx,
		`SELECT league_id, season, hits, doubles, triples, home_runs, walks, strikeouts,
		        runs, rbis, stolen_bases, caught_stealing, plate_appearances, at_bats,
		        earned_runs, outs_recorded, batters_faced, player_count
		 FROM game_player_stats_league_aggregate WHERE season = $1 ORDER BY league_id`,
		season)
	if err != nil {
		return nil, fmt.Errorf("query league rollup: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan league rollup row: %w", err)
		}
		row := make(map[string]any, len(leagueRollupColumns))
		playerCount, _ := toInt(values[len(values)-1])
		for i, col := range leagueRollupColumns {
			if i >= len(values) {
				break
			}
			switch {
			case col == "league_id" || col == "season" || col == "player_count":
				row[col] = values[i]
			case mode == "averages" && playerCount > 0:
				n, _ := toInt(values[i])
				row[col] = float64(n) / float64(playerCount)
			default:
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}
