// Package domain holds the minimal typed views workers need onto upstream
// JSON documents: just enough structure to fan out IDs, resolve rosters, and
// maintain the derived domain tables. Full document shapes stay opaque
// json.RawMessage — spec.md §1 explicitly scopes upstream domain semantics
// (what a game event "means") out of this system.
package domain

import "encoding/json"

// RosterSlot is one player entry on a team's roster, as embedded in a team
// document. Field names match the upstream document's own PascalCase keys
// (ground: original_source chron-ingest/src/models.rs's MmolbTeamPlayer /
// MmolbPlayer serde renames), not the snake_case used for this system's own
// derived tables and API responses.
type RosterSlot struct {
	PlayerID     string `json:"PlayerID"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	PositionType string `json:"PositionType"`
}

// FullName is the space-joined display name used to match a play-by-play
// event's free-text player name back to a roster slot.
func (r RosterSlot) FullName() string {
	return r.FirstName + " " + r.LastName
}

// TeamDocument is the subset of a team document workers need: its roster
// (for live-event player-name resolution) and its free-text location (for
// geocoding).
type TeamDocument struct {
	FullLocation string       `json:"Location"`
	Players      []RosterSlot `json:"Players"`
}

// FindPlayerByName resolves a free-text player name to a roster slot's
// player id, scoped to a position type (e.g. "Pitcher", "Batter"). It
// returns "", false if zero or more than one slot matches — an ambiguous
// match is treated as "could not resolve", not a guess.
func (t TeamDocument) FindPlayerByName(name, positionType string) (string, bool) {
	var found string
	matches := 0
	for _, slot := range t.Players {
		if slot.FullName() == name && slot.PositionType == positionType {
			found = slot.PlayerID
			matches++
		}
	}
	if matches != 1 {
		return "", false
	}
	return found, true
}

// StateDocument is the global league/season pointer object returned by
// /api/state. Leagues are split into two upstream lists rather than one
// (ground: original_source models.rs's MmolbState GreaterLeagues/
// LesserLeagues) — AllLeagueIDs concatenates them for callers that only
// care about fanning out to every league.
type StateDocument struct {
	GreaterLeagues []string `json:"GreaterLeagues"`
	LesserLeagues  []string `json:"LesserLeagues"`
	SeasonNumber   int      `json:"SeasonNumber"`
	SeasonID       string   `json:"SeasonID"`
}

// AllLeagueIDs returns every league id the state document references,
// greater and lesser leagues combined.
func (s StateDocument) AllLeagueIDs() []string {
	ids := make([]string, 0, len(s.GreaterLeagues)+len(s.LesserLeagues))
	ids = append(ids, s.GreaterLeagues...)
	ids = append(ids, s.LesserLeagues...)
	return ids
}

// TimeDocument is the upstream's notion of current game time.
type TimeDocument struct {
	SeasonNumber int    `json:"SeasonNumber"`
	SeasonID     string `json:"SeasonID"`
	DayID        string `json:"DayID"`
}

// LeagueDocument is the subset of a league document needed to fan out to
// its member teams (ground: original_source models.rs's MmolbLeague).
type LeagueDocument struct {
	TeamIDs []string `json:"Teams"`
}

// GameDocument is the static per-game record.
type GameDocument struct {
	Season     int    `json:"Season"`
	Day        int    `json:"Day"`
	HomeTeamID string `json:"HomeTeamID"`
	AwayTeamID string `json:"AwayTeamID"`
	State      string `json:"State"`
	EventCount int    `json:"EventCount"`
}

// SeasonDocument lists the day ids belonging to a season.
type SeasonDocument struct {
	DayIDs []string `json:"Days"`
}

// DayDocument lists the game ids scheduled on a single day.
type DayDocument struct {
	GameIDs []string `json:"Games"`
}

// LiveResponse is the incremental play-by-play delta returned by
// /api/game/{id}/live.
type LiveResponse struct {
	Entries []json.RawMessage `json:"entries"`
}

// GameEvent is the subset of a single play-by-play entry used to resolve
// participants and detect game completion. InningSide is 0 for the top of
// the inning (home team pitching, away team batting) and 1 for the bottom
// (ground: original_source games.rs save_game_events).
type GameEvent struct {
	Event      string `json:"event"`
	Pitcher    string `json:"pitcher"`
	Batter     string `json:"batter"`
	InningSide int    `json:"inning_side"`
}

// IsGameOver reports whether this event marks the end of a game.
func (e GameEvent) IsGameOver() bool {
	return e.Event == "Recordkeeping" || e.Event == "GameOver"
}

// Game is the derived-table row shape for games, used by PollLiveGames to
// read the current event_count cursor before fetching a delta, and also
// the `/games` response element (json tags added for that wire use; ingest
// never marshals this type from upstream JSON).
type Game struct {
	GameID     string `json:"game_id"`
	Season     int    `json:"season"`
	Day        int    `json:"day"`
	HomeTeamID string `json:"home_team_id"`
	AwayTeamID string `json:"away_team_id"`
	State      string `json:"state"`
	EventCount int    `json:"event_count"`
}

// FeedLink is one entity reference embedded in a feed entry's text, e.g. the
// player a "struck out" narration line refers to.
type FeedLink struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	String string `json:"string"`
}

// FeedEntry is one narrative feed item scanned by ProcessFeeds to recover
// historical (timestamp, id, name) triples for player_name_map.
type FeedEntry struct {
	Timestamp int64      `json:"ts"`
	Text      string     `json:"text"`
	Links     []FeedLink `json:"links"`
}

// FeedHolder wraps a player's or team's feed sub-tree. Player and team
// documents carry it under "Feed"; the standalone feed endpoint returns the
// same shape under lowercase "feed" (ground: original_source models.rs's
// FeedHolder rename/alias pair) — UnmarshalJSON accepts either.
type FeedHolder struct {
	Feed []FeedEntry `json:"-"`
}

func (h *FeedHolder) UnmarshalJSON(data []byte) error {
	var aux struct {
		Upper []FeedEntry `json:"Feed"`
		Lower []FeedEntry `json:"feed"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Upper) > 0 {
		h.Feed = aux.Upper
	} else {
		h.Feed = aux.Lower
	}
	return nil
}
