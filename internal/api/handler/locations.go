package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/geocode"
)

type teamLocation struct {
	TeamID       string          `json:"team_id"`
	FullLocation string          `json:"full_location"`
	Location     json.RawMessage `json:"location,omitempty"`
}

// GetLocations serves /locations: every team augmented with the
// geocoordinates resolved for its full_location string, where available.
// @Summary Teams with resolved locations
// @Description Returns every team paired with its geocoded location, where one has been resolved.
// @Tags locations
// @Produce json
// @Success 200 {array} teamLocation
// @Failure 500 {string} string "error"
// @Router /locations [get]
func (h *Handler) GetLocations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Pool.Query(r.Context(),
		`SELECT entity_id, data_json->>'full_location' AS full_location FROM teams ORDER BY entity_id`)
	if err != nil {
		respond.WriteServerError(w, fmt.Errorf("query teams: %w", err))
		return
	}

	out := []teamLocation{}
	normalized := map[string]int{} // loc_normalized -> index into out
	for rows.Next() {
		var tl teamLocation
		if err := rows.Scan(&tl.TeamID, &tl.FullLocation); err != nil {
			rows.Close()
			respond.WriteServerError(w, fmt.Errorf("scan team row: %w", err))
			return
		}
		if tl.FullLocation != "" {
			normalized[geocode.Normalize(tl.FullLocation)] = len(out)
		}
		out = append(out, tl)
	}
	rowsErr := rows.Err()
	rows.Close()
	if rowsErr != nil {
		respond.WriteServerError(w, rowsErr)
		return
	}

	if len(normalized) > 0 {
		keys := make([]string, 0, len(normalized))
		for k := range normalized {
			keys = append(keys, k)
		}
		locRows, err := h.Pool.Query(r.Context(),
			`SELECT loc_normalized, data_json FROM locations WHERE loc_normalized = ANY($1)`, keys)
		if err != nil {
			respond.WriteServerError(w, fmt.Errorf("query locations: %w", err))
			return
		}
		for locRows.Next() {
			var key string
			var data []byte
			if err := locRows.Scan(&key, &data); err != nil {
				locRows.Close()
				respond.WriteServerError(w, fmt.Errorf("scan location row: %w", err))
				return
			}
			if idx, ok := normalized[key]; ok && data != nil {
				out[idx].Location = json.RawMessage(data)
			}
		}
		locErr := locRows.Err()
		locRows.Close()
		if locErr != nil {
			respond.WriteServerError(w, locErr)
			return
		}
	}

	respond.WriteJSONObject(w, http.StatusOK, out)
}
