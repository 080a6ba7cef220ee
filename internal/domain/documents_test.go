package domain

import (
	"encoding/json"
	"testing"
)

func TestTeamDocumentUnmarshalsUpstreamCasing(t *testing.T) {
	raw := `{"Location":"Crabview, OH","Players":[
		{"PlayerID":"p1","FirstName":"Jo","LastName":"Ann","PositionType":"Pitcher"},
		{"PlayerID":"p2","FirstName":"Jo","LastName":"Ann","PositionType":"Batter"}
	]}`

	var team TeamDocument
	if err := json.Unmarshal([]byte(raw), &team); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if team.FullLocation != "Crabview, OH" {
		t.Fatalf("unexpected location: %q", team.FullLocation)
	}
	if len(team.Players) != 2 {
		t.Fatalf("expected 2 roster slots, got %d", len(team.Players))
	}
}

func TestFindPlayerByNameRejectsAmbiguousMatch(t *testing.T) {
	team := TeamDocument{Players: []RosterSlot{
		{PlayerID: "p1", FirstName: "Jo", LastName: "Ann", PositionType: "Pitcher"},
		{PlayerID: "p2", FirstName: "Jo", LastName: "Ann", PositionType: "Pitcher"},
	}}

	if _, ok := team.FindPlayerByName("Jo Ann", "Pitcher"); ok {
		t.Fatalf("expected ambiguous match to resolve to not-found")
	}
}

func TestFindPlayerByNameScopesByPositionType(t *testing.T) {
	team := TeamDocument{Players: []RosterSlot{
		{PlayerID: "p1", FirstName: "Jo", LastName: "Ann", PositionType: "Pitcher"},
		{PlayerID: "p2", FirstName: "Jo", LastName: "Ann", PositionType: "Batter"},
	}}

	id, ok := team.FindPlayerByName("Jo Ann", "Batter")
	if !ok || id != "p2" {
		t.Fatalf("expected unambiguous batter match p2, got %q, %v", id, ok)
	}
}

func TestStateDocumentAllLeagueIDsCombinesBothLists(t *testing.T) {
	raw := `{"GreaterLeagues":["g1","g2"],"LesserLeagues":["l1"],"SeasonNumber":3,"SeasonID":"s3"}`

	var state StateDocument
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ids := state.AllLeagueIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 combined league ids, got %v", ids)
	}
}

func TestFeedHolderAcceptsUpperOrLowerFeedKey(t *testing.T) {
	var upper FeedHolder
	if err := json.Unmarshal([]byte(`{"Feed":[{"ts":1,"text":"a","links":[]}]}`), &upper); err != nil {
		t.Fatalf("unmarshal upper: %v", err)
	}
	if len(upper.Feed) != 1 {
		t.Fatalf("expected 1 feed entry from uppercase key, got %d", len(upper.Feed))
	}

	var lower FeedHolder
	if err := json.Unmarshal([]byte(`{"feed":[{"ts":1,"text":"b","links":[]}]}`), &lower); err != nil {
		t.Fatalf("unmarshal lower: %v", err)
	}
	if len(lower.Feed) != 1 {
		t.Fatalf("expected 1 feed entry from lowercase key, got %d", len(lower.Feed))
	}
}
