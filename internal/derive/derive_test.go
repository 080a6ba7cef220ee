package derive

import (
	"encoding/json"
	"testing"

	"github.com/albapepper/chron/internal/entity"
)

func TestFromTeamStripsFeedAndPlayerStats(t *testing.T) {
	raw := json.RawMessage(`{
		"Location":"Crabtown",
		"Feed":[{"ts":1,"text":"hi","links":[]}],
		"Players":[{"PlayerID":"p1","Stats":{"hits":3}}]
	}`)

	docs, err := From(entity.KindTeam, "team-1", raw)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if len(docs) != 1 || docs[0].Kind != entity.KindTeamLite {
		t.Fatalf("expected a single TeamLite document, got %+v", docs)
	}

	var lite map[string]json.RawMessage
	if err := json.Unmarshal(docs[0].Data, &lite); err != nil {
		t.Fatalf("unmarshal lite: %v", err)
	}
	if _, ok := lite["Feed"]; ok {
		t.Fatalf("expected Feed stripped from team lite")
	}

	var players []map[string]json.RawMessage
	if err := json.Unmarshal(lite["Players"], &players); err != nil {
		t.Fatalf("unmarshal players: %v", err)
	}
	if _, ok := players[0]["Stats"]; ok {
		t.Fatalf("expected Stats stripped from each roster slot")
	}
}

func TestFromPlayerSplitsTalkAxes(t *testing.T) {
	raw := json.RawMessage(`{
		"Stats":{"hits":1},
		"Feed":[],
		"Talk":{"Batting":{"a":1},"Pitching":{"b":2}}
	}`)

	docs, err := From(entity.KindPlayer, "player-1", raw)
	if err != nil {
		t.Fatalf("From: %v", err)
	}

	kinds := make(map[entity.Kind]bool, len(docs))
	for _, d := range docs {
		kinds[d.Kind] = true
	}
	for _, want := range []entity.Kind{entity.KindPlayerLite, entity.KindTalk, entity.KindTalkBatting, entity.KindTalkPitching} {
		if !kinds[want] {
			t.Fatalf("expected derived kind %s, got %+v", want, docs)
		}
	}
	if kinds[entity.KindTalkBaserunning] || kinds[entity.KindTalkDefense] {
		t.Fatalf("did not expect Baserunning/Defense axes absent from source Talk block")
	}
}

func TestFromUnrelatedKindProducesNothing(t *testing.T) {
	docs, err := From(entity.KindGame, "game-1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if docs != nil {
		t.Fatalf("expected no derived documents for a Game, got %+v", docs)
	}
}
