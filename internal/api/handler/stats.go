package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/stats"
)

// parseStatsRequest builds a stats.Request from a /stats query string —
// every enumerated field is validated against the closed Field/GroupColumn/
// FilterOp sets before it ever reaches stats.BuildQuery.
func parseStatsRequest(q map[string][]string) (stats.Request, stats.Format, error) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var req stats.Request
	var err error

	req.Start, err = parseSeasonDay(get("start"))
	if err != nil {
		return req, "", err
	}
	req.End, err = parseSeasonDay(get("end"))
	if err != nil {
		return req, "", err
	}

	req.Player = get("player")
	req.Team = get("team")
	req.League = get("league")
	req.Game = get("game")

	if fields := get("fields"); fields != "" {
		for _, name := range strings.Split(fields, ",") {
			f, err := stats.ParseField(strings.TrimSpace(name))
			if err != nil {
				return req, "", err
			}
			req.Fields = append(req.Fields, f)
		}
	}
	req.Fields = stats.DedupFields(req.Fields)

	if groups := get("group"); groups != "" {
		for _, name := range strings.Split(groups, ",") {
			g, err := stats.ParseGroupColumn(strings.TrimSpace(name))
			if err != nil {
				return req, "", err
			}
			req.Group = append(req.Group, g)
		}
	}

	if sort := get("sort"); sort != "" {
		f, err := stats.ParseField(sort)
		if err != nil {
			return req, "", err
		}
		req.Sort = f
	}

	if names := get("names"); names != "" {
		req.Names, _ = strconv.ParseBool(names)
	}

	if count := get("count"); count != "" {
		if n, err := strconv.Atoi(count); err == nil {
			req.Count = n
		}
	}

	for key, values := range q {
		op, ok := statFilterSuffix(key)
		if !ok {
			continue
		}
		fieldName := strings.TrimSuffix(key, "_"+string(op))
		f, err := stats.ParseField(fieldName)
		if err != nil {
			continue
		}
		for _, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, "", err
			}
			req.Filters = append(req.Filters, stats.Filter{Field: f, Op: op, Value: n})
		}
	}

	format, err := stats.ParseFormat(get("format"))
	if err != nil {
		return req, "", err
	}

	return req, format, nil
}

// statFilterSuffix reports whether key has the shape "<field>_<op>" for one
// of the closed filter ops, e.g. "hits_gt".
func statFilterSuffix(key string) (stats.FilterOp, bool) {
	for _, op := range []stats.FilterOp{stats.FilterGTE, stats.FilterLTE, stats.FilterGT, stats.FilterLT, stats.FilterEQ} {
		if strings.HasSuffix(key, "_"+string(op)) {
			return op, true
		}
	}
	return "", false
}

// GetStats serves /stats: the full parameterized aggregation query (§4.J),
// streamed as CSV, JSON, or NDJSON per the `format` param.
// @Summary Run a stats aggregation query
// @Description Builds and streams a grouped, filtered, summed stats query.
// @Tags stats
// @Produce json
// @Produce text/plain
// @Param fields query string true "Comma-separated stat fields"
// @Param group query string false "Comma-separated group columns"
// @Param start query string false "Season-day range start, \"season,day\""
// @Param end query string false "Season-day range end, \"season,day\""
// @Param player query string false "Player id filter"
// @Param team query string false "Team id filter"
// @Param league query string false "League id filter"
// @Param game query string false "Game id filter"
// @Param sort query string false "Field to sort descending by"
// @Param count query int false "Row limit, default and max 100000"
// @Param format query string false "csv, json, or ndjson"
// @Success 200 {string} string "streamed rows"
// @Failure 400 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	req, format, err := parseStatsRequest(r.URL.Query())
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	sql, args, err := stats.BuildQuery(req)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	rows, err := h.Pool.Query(r.Context(), sql, args...)
	if err != nil {
		respond.WriteServerError(w, err)
		return
	}
	defer rows.Close()

	columns := stats.OutputColumns(req)
	w.Header().Set("Content-Type", format.ContentType())
	sw := stats.NewWriter(w, format, columns)
	if err := sw.WriteHeader(); err != nil {
		return
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return
		}
		if err := sw.WriteRow(values); err != nil {
			return
		}
	}
	sw.Close()
}
