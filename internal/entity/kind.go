// Package entity defines the closed set of archived document kinds and the
// core data-model types shared by the content store, query layer, and workers.
package entity

import "fmt"

// Kind tags what an archived document represents. Values are stable across
// releases — the integer, not the name, is persisted.
type Kind int16

const (
	KindState Kind = iota + 1
	KindTime
	KindLeague
	KindTeam
	KindPlayer
	KindGame
	KindGameEvent
	KindTeamLite
	KindPlayerLite
	KindTalk
	KindTalkBatting
	KindTalkPitching
	KindTalkBaserunning
	KindTalkDefense
	KindLocation
	KindMessage
	KindSchedule
)

var kindNames = map[Kind]string{
	KindState:           "state",
	KindTime:            "time",
	KindLeague:          "league",
	KindTeam:            "team",
	KindPlayer:          "player",
	KindGame:            "game",
	KindGameEvent:       "game_event",
	KindTeamLite:        "team_lite",
	KindPlayerLite:      "player_lite",
	KindTalk:            "talk",
	KindTalkBatting:     "talk_batting",
	KindTalkPitching:    "talk_pitching",
	KindTalkBaserunning: "talk_baserunning",
	KindTalkDefense:     "talk_defense",
	KindLocation:        "location",
	KindMessage:         "message",
	KindSchedule:        "schedule",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int16(k))
}

// ParseKind resolves a kind's external string name to its stable integer tag.
func ParseKind(name string) (Kind, error) {
	if k, ok := namesToKind[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown entity kind %q", name)
}
