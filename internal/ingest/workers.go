package ingest

import "github.com/albapepper/chron/internal/config"

// AllWorkers returns every registered periodic worker (§4.G table),
// configured from cfg where a worker's interval or behavior is
// user-tunable.
func AllWorkers(cfg *config.Config) []Worker {
	return []Worker{
		PollLeague{},
		PollNewPlayers{},
		PollAllPlayers{},
		PollGameDays{},
		PollLiveGames{},
		HandleEventGames{},
		RefreshMatviews{Period: cfg.MatviewRefreshInterval},
		PollMessage{},
		LookupMapLocations{},
		ProcessFeeds{},
	}
}
