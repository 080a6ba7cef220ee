package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/domain"
	"github.com/albapepper/chron/internal/entity"
	"github.com/albapepper/chron/internal/query"
)

// pagedGames is the wire shape for /games; /teams and /leagues use
// teamsOrLeaguesResponse.
type pagedGames struct {
	Items    []domain.Game `json:"items"`
	NextPage *string       `json:"next_page,omitempty"`
}

func encodeGameCursor(gameID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(gameID))
}

func decodeGameCursor(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode page token: %w", err)
	}
	return string(b), nil
}

// GetGames serves /games: season is required, day/team narrow it further,
// results are keyset-paginated on game_id.
// @Summary List games
// @Description Lists games for a season, optionally narrowed by day or team.
// @Tags games
// @Produce json
// @Param season query int true "Season number"
// @Param day query int false "Day number"
// @Param team query string false "Team id filter (home or away)"
// @Param order query string false "asc or desc"
// @Param count query int false "Page size, default 100, capped at 1000"
// @Param page query string false "Opaque continuation token"
// @Success 200 {object} pagedGames
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /games [get]
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	season, err := strconv.Atoi(q.Get("season"))
	if err != nil {
		respond.WriteBadRequest(w, "season is required and must be an integer")
		return
	}

	var b strings.Builder
	args := []any{season}
	b.WriteString(`SELECT game_id, season, day, home_team_id, away_team_id, state, event_count
		FROM games WHERE season = $1`)

	if d := q.Get("day"); d != "" {
		day, err := strconv.Atoi(d)
		if err != nil {
			respond.WriteBadRequest(w, "day must be an integer")
			return
		}
		args = append(args, day)
		fmt.Fprintf(&b, " AND day = $%d", len(args))
	}

	if team := q.Get("team"); team != "" {
		args = append(args, team)
		fmt.Fprintf(&b, " AND (home_team_id = $%d OR away_team_id = $%d)", len(args), len(args))
	}

	order := "ASC"
	cmp := ">"
	if strings.EqualFold(q.Get("order"), "desc") {
		order = "DESC"
		cmp = "<"
	}

	if page := q.Get("page"); page != "" {
		cursor, err := decodeGameCursor(page)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		args = append(args, cursor)
		fmt.Fprintf(&b, " AND game_id %s $%d", cmp, len(args))
	}

	count := 100
	if c := q.Get("count"); c != "" {
		if parsed, err := strconv.Atoi(c); err == nil && parsed > 0 {
			count = parsed
		}
	}
	if count > 1000 {
		count = 1000
	}

	fmt.Fprintf(&b, " ORDER BY game_id %s LIMIT %d", order, count)

	games, err := scanGames(r.Context(), h, b.String(), args)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}

	resp := pagedGames{Items: games}
	if len(games) == count {
		tok := encodeGameCursor(games[len(games)-1].GameID)
		resp.NextPage = &tok
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

func scanGames(ctx context.Context, h *Handler, sql string, args []any) ([]domain.Game, error) {
	rows, err := h.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.GameID, &g.Season, &g.Day, &g.HomeTeamID, &g.AwayTeamID, &g.State, &g.EventCount); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// teamsOrLeaguesResponse wraps the non-paginated team/league arrays in the
// same paginated shape the rest of the read API uses, per spec.md §6's
// "non-paginated arrays wrapped as paginated".
type teamsOrLeaguesResponse struct {
	Items []entity.EntityVersion `json:"items"`
}

// GetTeams serves /teams: every open team version, kind=team.
// @Summary List teams
// @Description Returns every team's current document.
// @Tags games
// @Produce json
// @Success 200 {object} teamsOrLeaguesResponse
// @Failure 500 {string} string "error"
// @Router /teams [get]
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	h.listAllOpen(w, r, entity.KindTeam)
}

// GetLeagues serves /leagues: every open league version, kind=league.
// @Summary List leagues
// @Description Returns every league's current document.
// @Tags games
// @Produce json
// @Success 200 {object} teamsOrLeaguesResponse
// @Failure 500 {string} string "error"
// @Router /leagues [get]
func (h *Handler) GetLeagues(w http.ResponseWriter, r *http.Request) {
	h.listAllOpen(w, r, entity.KindLeague)
}

func (h *Handler) listAllOpen(w http.ResponseWriter, r *http.Request, kind entity.Kind) {
	page, err := h.Query.List(r.Context(), kind, query.ListParams{})
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, teamsOrLeaguesResponse{Items: page.Items})
}
