// Package derive implements the derivation pipeline (§4.I): pure
// transforms that project a freshly-ingested document into auxiliary
// entities — "lite" variants with bulky sub-trees stripped, and per-axis
// splits of a player's nested Talk block into their own entity kinds.
//
// Transforms are pure functions of (kind, id, data) -> derived documents;
// they hold no state and touch no I/O, so they can run synchronously inside
// a worker tick (spec.md §4.H step 5) or be replayed in bulk by
// `cmd/ingest rebuild-derived`.
package derive

import (
	"encoding/json"

	"github.com/albapepper/chron/internal/entity"
)

// Document is one derived (kind, id, payload) triple sharing the source
// document's valid_from — it is saved through the same content-store /
// observation-log / version-builder path as any primary fetch.
type Document struct {
	Kind entity.Kind
	ID   string
	Data json.RawMessage
}

// From produces every document derived from a freshly observed (kind, id,
// data) triple. Kinds with no derivation (anything but Player and Team)
// produce nothing.
func From(kind entity.Kind, id string, data json.RawMessage) ([]Document, error) {
	switch kind {
	case entity.KindPlayer:
		return fromPlayer(id, data)
	case entity.KindTeam:
		return fromTeam(id, data)
	default:
		return nil, nil
	}
}

func fromTeam(id string, data json.RawMessage) ([]Document, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}

	lite, err := toTeamLite(obj)
	if err != nil {
		return nil, err
	}
	return []Document{{Kind: entity.KindTeamLite, ID: id, Data: lite}}, nil
}

func fromPlayer(id string, data json.RawMessage) ([]Document, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}

	lite, err := toPlayerLite(obj)
	if err != nil {
		return nil, err
	}
	docs := []Document{{Kind: entity.KindPlayerLite, ID: id, Data: lite}}

	talkRaw, hasTalk := obj["Talk"]
	if !hasTalk {
		return docs, nil
	}
	docs = append(docs, Document{Kind: entity.KindTalk, ID: id, Data: talkRaw})

	var talk map[string]json.RawMessage
	if err := json.Unmarshal(talkRaw, &talk); err != nil {
		// Talk wasn't an object (e.g. null); the axis splits below simply
		// find nothing, which is not an error.
		return docs, nil
	}

	axes := []struct {
		key  string
		kind entity.Kind
	}{
		{"Batting", entity.KindTalkBatting},
		{"Pitching", entity.KindTalkPitching},
		{"Baserunning", entity.KindTalkBaserunning},
		{"Defense", entity.KindTalkDefense},
	}
	for _, axis := range axes {
		if inner, ok := talk[axis.key]; ok {
			docs = append(docs, Document{Kind: axis.kind, ID: id, Data: inner})
		}
	}

	return docs, nil
}

// toTeamLite strips each roster slot's Stats block and the team's own Feed
// sub-tree — the two sections responsible for nearly all of a team
// document's size and its highest churn rate.
func toTeamLite(obj map[string]json.RawMessage) (json.RawMessage, error) {
	lite := cloneFields(obj)
	delete(lite, "Feed")

	playersRaw, ok := lite["Players"]
	if !ok {
		return json.Marshal(lite)
	}

	var players []map[string]json.RawMessage
	if err := json.Unmarshal(playersRaw, &players); err != nil {
		return json.Marshal(lite)
	}
	for _, player := range players {
		delete(player, "Stats")
	}
	strippedPlayers, err := json.Marshal(players)
	if err != nil {
		return nil, err
	}
	lite["Players"] = strippedPlayers

	return json.Marshal(lite)
}

// toPlayerLite strips the Stats and Feed sub-trees from a player document.
func toPlayerLite(obj map[string]json.RawMessage) (json.RawMessage, error) {
	lite := cloneFields(obj)
	delete(lite, "Stats")
	delete(lite, "Feed")
	return json.Marshal(lite)
}

func cloneFields(obj map[string]json.RawMessage) map[string]json.RawMessage {
	clone := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		clone[k] = v
	}
	return clone
}
