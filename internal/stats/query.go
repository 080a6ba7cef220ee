package stats

import (
	"fmt"
	"strings"
)

// groupColumnSQL is the closed mapping from a GroupColumn to its source
// column(s) in game_player_stats_exploded. Day implies Season, so selecting
// Day never needs its own Season entry.
var groupColumnSQL = map[GroupColumn][]struct{ alias, expr string }{
	GroupGame:       {{"game_id", "game_id"}},
	GroupPlayer:     {{"player_id", "player_id"}},
	GroupPlayerName: {{"player_name", "player_name"}},
	GroupTeam:       {{"team_id", "team_id"}},
	GroupLeague:     {{"league_id", "league_id"}},
	GroupSeason:     {{"season", "season"}},
	GroupDay:        {{"season", "season"}, {"day", "day"}},
}

// BuildQuery builds the parameterized SQL for a stats request: it selects
// the requested grouping columns plus one SUM(field)::int per requested
// field, applies WHERE filters on the fixed identity columns, GROUP BYs the
// grouping columns, and applies HAVING predicates on the summed fields —
// including a synthetic disjunction that drops rows where every requested
// field sums to zero. Every identifier in the generated SQL comes from the
// closed Field/GroupColumn tables in stats.go; nothing here is
// interpolated from caller-supplied text.
func BuildQuery(req Request) (string, []any, error) {
	if len(req.Fields) == 0 {
		return "", nil, fmt.Errorf("stats query requires at least one field")
	}

	groups := expandGroups(req.Group)

	var sel strings.Builder
	for _, g := range groups {
		for _, col := range groupColumnSQL[g] {
			fmt.Fprintf(&sel, "%s, ", col.expr)
		}
	}
	if hasGroup(groups, GroupPlayer) && req.Names {
		sel.WriteString("player_name, ")
	}
	if hasGroup(groups, GroupTeam) && req.Names {
		sel.WriteString("team_name, ")
	}
	for _, f := range req.Fields {
		fmt.Fprintf(&sel, "SUM(%s)::int AS %s, ", f, f)
	}
	selectList := strings.TrimSuffix(sel.String(), ", ")

	var b strings.Builder
	args := []any{}
	fmt.Fprintf(&b, "SELECT %s FROM game_player_stats_exploded", selectList)

	var where []string
	if req.Start != nil {
		args = append(args, req.Start.Season, req.Start.Day)
		where = append(where, fmt.Sprintf("(season, day) >= ($%d, $%d)", len(args)-1, len(args)))
	}
	if req.End != nil {
		args = append(args, req.End.Season, req.End.Day)
		where = append(where, fmt.Sprintf("(season, day) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if req.Player != "" {
		args = append(args, req.Player)
		where = append(where, fmt.Sprintf("player_id = $%d", len(args)))
	}
	if req.Team != "" {
		args = append(args, req.Team)
		where = append(where, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if req.League != "" {
		args = append(args, req.League)
		where = append(where, fmt.Sprintf("league_id = $%d", len(args)))
	}
	if req.Game != "" {
		args = append(args, req.Game)
		where = append(where, fmt.Sprintf("game_id = $%d", len(args)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	if len(groups) > 0 {
		var groupBy strings.Builder
		for _, g := range groups {
			for _, col := range groupColumnSQL[g] {
				fmt.Fprintf(&groupBy, "%s, ", col.expr)
			}
		}
		if hasGroup(groups, GroupPlayer) && req.Names {
			groupBy.WriteString("player_name, ")
		}
		if hasGroup(groups, GroupTeam) && req.Names {
			groupBy.WriteString("team_name, ")
		}
		fmt.Fprintf(&b, " GROUP BY %s", strings.TrimSuffix(groupBy.String(), ", "))
	}

	var having []string
	for _, filt := range req.Filters {
		op, ok := filterSQL[filt.Op]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter op %q", filt.Op)
		}
		args = append(args, filt.Value)
		having = append(having, fmt.Sprintf("SUM(%s) %s $%d", filt.Field, op, len(args)))
	}

	var nonzero []string
	for _, f := range req.Fields {
		nonzero = append(nonzero, fmt.Sprintf("SUM(%s) <> 0", f))
	}
	having = append(having, "("+strings.Join(nonzero, " OR ")+")")

	if len(having) > 0 {
		b.WriteString(" HAVING " + strings.Join(having, " AND "))
	}

	if req.Sort != "" {
		fmt.Fprintf(&b, " ORDER BY SUM(%s) DESC", req.Sort)
	}

	fmt.Fprintf(&b, " LIMIT %d", ClampCount(req.Count))

	return b.String(), args, nil
}

// expandGroups returns groups with GroupDay's implicit GroupSeason made
// explicit, deduplicated, in the fixed display order rows use (§4.J's
// grouping-to-projection order, ground: stats.rs StatOutputRow::serialize).
func expandGroups(requested []GroupColumn) []GroupColumn {
	want := map[GroupColumn]bool{}
	for _, g := range requested {
		want[g] = true
	}
	if want[GroupDay] {
		want[GroupSeason] = false // Day's own column list already includes season
	}

	order := []GroupColumn{GroupDay, GroupGame, GroupPlayer, GroupPlayerName, GroupTeam, GroupLeague}
	var out []GroupColumn
	if !want[GroupDay] && want[GroupSeason] {
		out = append(out, GroupSeason)
	}
	for _, g := range order {
		if want[g] {
			out = append(out, g)
		}
	}
	return out
}
