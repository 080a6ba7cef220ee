package handler

import (
	"fmt"
	"net/http"

	"github.com/albapepper/chron/internal/api/respond"
)

type scorigamiEntry struct {
	Min         int    `json:"min"`
	Max         int    `json:"max"`
	Count       int    `json:"count"`
	FirstGameID string `json:"first_game_id"`
}

// scorigamiQuery groups completed games by their (loser runs, winner runs)
// pair — the runs tally is the only score proxy the schema tracks, since
// upstream score semantics beyond the runs stat are out of scope here.
const scorigamiQuery = `
WITH game_runs AS (
	SELECT g.game_id,
	       sum(CASE WHEN s.team_id = g.home_team_id THEN s.runs ELSE 0 END) AS home_runs,
	       sum(CASE WHEN s.team_id = g.away_team_id THEN s.runs ELSE 0 END) AS away_runs
	FROM games g
	JOIN game_player_stats_exploded s ON s.game_id = g.game_id
	WHERE g.state = 'Complete'
	GROUP BY g.game_id, g.home_team_id, g.away_team_id
),
scores AS (
	SELECT game_id,
	       least(home_runs, away_runs)    AS min_score,
	       greatest(home_runs, away_runs) AS max_score
	FROM game_runs
)
SELECT min_score, max_score, count(*), (array_agg(game_id ORDER BY game_id))[1]
FROM scores
GROUP BY min_score, max_score
ORDER BY count(*) DESC`

// GetScorigami serves /scorigami: every (loser runs, winner runs) pair that
// has occurred, with its occurrence count and first game.
// @Summary Scorigami table
// @Description Returns every completed-game score pair, how often it occurred, and its first game.
// @Tags games
// @Produce json
// @Success 200 {array} scorigamiEntry
// @Failure 500 {string} string "error"
// @Router /scorigami [get]
func (h *Handler) GetScorigami(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Pool.Query(r.Context(), scorigamiQuery)
	if err != nil {
		respond.WriteServerError(w, fmt.Errorf("query scorigami: %w", err))
		return
	}
	defer rows.Close()

	out := []scorigamiEntry{}
	for rows.Next() {
		var e scorigamiEntry
		if err := rows.Scan(&e.Min, &e.Max, &e.Count, &e.FirstGameID); err != nil {
			respond.WriteServerError(w, fmt.Errorf("scan scorigami row: %w", err))
			return
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		respond.WriteServerError(w, err)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, out)
}
