package stats

import (
	"strings"
	"testing"
)

func TestBuildQueryRequiresAtLeastOneField(t *testing.T) {
	_, _, err := BuildQuery(Request{})
	if err == nil {
		t.Fatal("expected error for empty field list")
	}
}

func TestBuildQueryGroupsAndSumsFields(t *testing.T) {
	req := Request{
		Fields: []Field{FieldHits, FieldWalks},
		Group:  []GroupColumn{GroupPlayer, GroupTeam},
		Count:  50,
	}
	sql, args, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args for an unfiltered query, got %v", args)
	}
	if !strings.Contains(sql, "SUM(hits)::int AS hits") {
		t.Fatalf("expected hits aggregation, got %s", sql)
	}
	if !strings.Contains(sql, "GROUP BY player_id, team_id") {
		t.Fatalf("expected group by player then team, got %s", sql)
	}
	if !strings.Contains(sql, "LIMIT 50") {
		t.Fatalf("expected count clause, got %s", sql)
	}
}

func TestBuildQueryDayImpliesSeason(t *testing.T) {
	req := Request{
		Fields: []Field{FieldHits},
		Group:  []GroupColumn{GroupDay},
	}
	sql, _, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "SELECT season, day, SUM(hits)::int AS hits") {
		t.Fatalf("expected season+day projected once, got %s", sql)
	}
}

func TestBuildQueryFiltersBecomeHaving(t *testing.T) {
	req := Request{
		Fields:  []Field{FieldHits},
		Filters: []Filter{{Field: FieldHits, Op: FilterGTE, Value: 10}},
	}
	sql, args, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "HAVING SUM(hits) >= $1") {
		t.Fatalf("expected having clause, got %s", sql)
	}
	if len(args) != 1 || args[0] != 10 {
		t.Fatalf("expected having arg [10], got %v", args)
	}
}

func TestBuildQueryExcludesAllZeroRows(t *testing.T) {
	req := Request{Fields: []Field{FieldHits, FieldWalks}}
	sql, _, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "HAVING (SUM(hits) <> 0 OR SUM(walks) <> 0)") {
		t.Fatalf("expected nonzero disjunction, got %s", sql)
	}
}

func TestBuildQuerySeasonDayRangeFilters(t *testing.T) {
	req := Request{
		Fields: []Field{FieldHits},
		Start:  &SeasonDay{Season: 3, Day: 1},
		End:    &SeasonDay{Season: 4, Day: 0},
	}
	sql, args, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "(season, day) >= ($1, $2)") || !strings.Contains(sql, "(season, day) < ($3, $4)") {
		t.Fatalf("expected season/day range filters, got %s", sql)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
}

func TestBuildQuerySortAppendsOrderBy(t *testing.T) {
	req := Request{Fields: []Field{FieldHits}, Sort: FieldHits}
	sql, _, err := BuildQuery(req)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if !strings.Contains(sql, "ORDER BY SUM(hits) DESC") {
		t.Fatalf("expected sort clause, got %s", sql)
	}
}

func TestDedupFieldsKeepsFirstOccurrence(t *testing.T) {
	got := DedupFields([]Field{FieldHits, FieldWalks, FieldHits, FieldRuns, FieldWalks})
	want := []Field{FieldHits, FieldWalks, FieldRuns}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestClampCount(t *testing.T) {
	if ClampCount(0) != DefaultCount {
		t.Fatalf("expected default count for 0")
	}
	if ClampCount(1_000_000) != MaxCount {
		t.Fatalf("expected max count cap")
	}
	if ClampCount(10) != 10 {
		t.Fatalf("expected explicit count to pass through")
	}
}
