// Package stats implements the stats aggregator (§4.J): a parameterized
// SQL builder over a closed set of fields, groupings, filters, and sorts,
// plus a dynamic-shape row writer for CSV/JSON/NDJSON output.
//
// The builder never accepts a raw field or column name from the caller —
// every identifier that reaches the generated SQL is first resolved
// against the enumerated Field/GroupColumn tables below, so the set of
// SQL this package can emit is closed by construction.
package stats

import "fmt"

// Field is one summable stat column in game_player_stats_exploded. The set
// is closed: values outside this list are rejected by ParseField before
// they ever reach BuildQuery.
type Field string

const (
	FieldHits             Field = "hits"
	FieldDoubles          Field = "doubles"
	FieldTriples          Field = "triples"
	FieldHomeRuns         Field = "home_runs"
	FieldWalks            Field = "walks"
	FieldStrikeouts       Field = "strikeouts"
	FieldRuns             Field = "runs"
	FieldRunsBattedIn     Field = "rbis"
	FieldStolenBases      Field = "stolen_bases"
	FieldCaughtStealing   Field = "caught_stealing"
	FieldHitByPitch       Field = "hit_by_pitch"
	FieldSacrificeFlies   Field = "sacrifice_flies"
	FieldPlateAppearances Field = "plate_appearances"
	FieldAtBats           Field = "at_bats"
	FieldEarnedRuns       Field = "earned_runs"
	FieldOutsRecorded     Field = "outs_recorded"
	FieldBattersFaced     Field = "batters_faced"
	FieldPitchesThrown    Field = "pitches_thrown"
	FieldWalksAllowed     Field = "walks_allowed"
	FieldHitsAllowed      Field = "hits_allowed"
	FieldHomeRunsAllowed  Field = "home_runs_allowed"
	FieldStrikeoutsThrown Field = "strikeouts_thrown"
)

var validFields = map[Field]bool{
	FieldHits: true, FieldDoubles: true, FieldTriples: true, FieldHomeRuns: true,
	FieldWalks: true, FieldStrikeouts: true, FieldRuns: true, FieldRunsBattedIn: true,
	FieldStolenBases: true, FieldCaughtStealing: true, FieldHitByPitch: true,
	FieldSacrificeFlies: true, FieldPlateAppearances: true, FieldAtBats: true,
	FieldEarnedRuns: true, FieldOutsRecorded: true, FieldBattersFaced: true,
	FieldPitchesThrown: true, FieldWalksAllowed: true, FieldHitsAllowed: true,
	FieldHomeRunsAllowed: true, FieldStrikeoutsThrown: true,
}

// ParseField validates a field name against the closed set.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if !validFields[f] {
		return "", fmt.Errorf("unknown stat field %q", name)
	}
	return f, nil
}

// GroupColumn is a dimension stats rows can be grouped by.
type GroupColumn string

const (
	GroupSeason     GroupColumn = "season"
	GroupDay        GroupColumn = "day" // implies GroupSeason
	GroupGame       GroupColumn = "game"
	GroupPlayer     GroupColumn = "player"
	GroupTeam       GroupColumn = "team"
	GroupLeague     GroupColumn = "league"
	GroupPlayerName GroupColumn = "player_name"
)

var validGroups = map[GroupColumn]bool{
	GroupSeason: true, GroupDay: true, GroupGame: true, GroupPlayer: true,
	GroupTeam: true, GroupLeague: true, GroupPlayerName: true,
}

// ParseGroupColumn validates a grouping name against the closed set.
func ParseGroupColumn(name string) (GroupColumn, error) {
	g := GroupColumn(name)
	if !validGroups[g] {
		return "", fmt.Errorf("unknown group column %q", name)
	}
	return g, nil
}

// FilterOp is a HAVING comparison applied to a field's summed value.
type FilterOp string

const (
	FilterGT  FilterOp = "gt"
	FilterLT  FilterOp = "lt"
	FilterEQ  FilterOp = "eq"
	FilterGTE FilterOp = "gte"
	FilterLTE FilterOp = "lte"
)

var filterSQL = map[FilterOp]string{
	FilterGT: ">", FilterLT: "<", FilterEQ: "=", FilterGTE: ">=", FilterLTE: "<=",
}

// Filter is one HAVING predicate: SUM(field) op value.
type Filter struct {
	Field Field
	Op    FilterOp
	Value int
}

// SeasonDay is a half-open (season, day) tuple boundary used for Start/End.
type SeasonDay struct {
	Season int
	Day    int
}

// Request is the full, validated shape of a /stats query (§4.J, ground:
// original_source/chron-api/src/stats.rs StatsRequest). It is built by the
// API handler from query-string parameters; every enumerated field on it
// has already been validated against the closed Field/GroupColumn/FilterOp
// sets by the time it reaches BuildQuery.
type Request struct {
	Start *SeasonDay
	End   *SeasonDay

	Player string
	Team   string
	League string
	Game   string

	Fields []Field // ordered, deduplicated by the caller (DedupFields)
	Group  []GroupColumn

	Sort  Field
	Count int

	Filters []Filter

	// Names, when true and Player is grouped, also projects player_name;
	// when Team is grouped, also projects team_name.
	Names bool
}

// DefaultCount and MaxCount bound Request.Count, per spec.md §4.J.
const (
	DefaultCount = 100_000
	MaxCount     = 100_000
)

// ClampCount applies the default/max bound to a requested row count.
func ClampCount(requested int) int {
	if requested <= 0 {
		return DefaultCount
	}
	if requested > MaxCount {
		return MaxCount
	}
	return requested
}

// DedupFields removes later duplicates from fields, keeping first
// occurrence order (ground: stats.rs dedup_preserving_order).
func DedupFields(fields []Field) []Field {
	seen := make(map[Field]bool, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// hasGroup reports whether g appears in groups.
func hasGroup(groups []GroupColumn, g GroupColumn) bool {
	for _, x := range groups {
		if x == g {
			return true
		}
	}
	return false
}
