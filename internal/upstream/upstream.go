// Package upstream builds and issues requests against the live game API
// (§6 "Outbound HTTP"). It is a thin, typed layer over internal/httpclient:
// every exported method maps to exactly one documented endpoint and returns
// the raw decoded JSON as entity.Hash-ready bytes, leaving interpretation to
// the ingest workers that call it.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/albapepper/chron/internal/httpclient"
)

// Client issues requests against the upstream game API. It wraps a shared
// httpclient.Client so every caller draws from the same concurrency
// semaphore and circuit breaker.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  *slog.Logger
}

// New builds an upstream client. baseURL has no trailing slash, e.g.
// "https://mmolb.com".
func New(http *httpclient.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// State fetches the global league/season pointer object.
func (c *Client) State(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/state"))
}

// Time fetches the upstream's notion of the current in-game time.
func (c *Client) Time(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/time"))
}

// Spotlight fetches the homepage "spotlight" feature blob.
func (c *Client) Spotlight(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/spotlight"))
}

// News fetches the league news feed.
func (c *Client) News(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/news"))
}

// Message fetches the single "message of the day" object.
func (c *Client) Message(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/message"))
}

// SuperstarGames fetches the set of featured superstar game ids.
func (c *Client) SuperstarGames(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/superstar-games"))
}

// TodayGames fetches the set of game ids scheduled for the current day.
func (c *Client) TodayGames(ctx context.Context) (*httpclient.Response, error) {
	return c.http.Fetch(ctx, c.url("/api/today-games"))
}

// League fetches a single league by id. ok is false if the upstream
// returned 404 (league not yet published).
func (c *Client) League(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/league/"+url.PathEscape(id)))
}

// Team fetches a single team by id.
func (c *Client) Team(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/team/"+url.PathEscape(id)))
}

// Player fetches a single player by id.
func (c *Client) Player(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/player/"+url.PathEscape(id)))
}

// Players fetches a batch of players in one call.
func (c *Client) Players(ctx context.Context, ids []string) (*httpclient.Response, error) {
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	return c.http.Fetch(ctx, c.url("/api/players?"+q.Encode()))
}

// Game fetches the static game record (box score, participants).
func (c *Client) Game(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/game/"+url.PathEscape(id)))
}

// GameLive fetches the play-by-play event delta for a game, after event
// index `after` (exclusive). Passing after<0 requests the full event log.
func (c *Client) GameLive(ctx context.Context, id string, after int) (*httpclient.Response, bool, error) {
	path := fmt.Sprintf("/api/game/%s/live", url.PathEscape(id))
	if after >= 0 {
		path += "?after=" + strconv.Itoa(after)
	}
	return c.http.TryFetch(ctx, c.url(path))
}

// TeamSchedule fetches a team's full game schedule.
func (c *Client) TeamSchedule(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/team-schedule/"+url.PathEscape(id)))
}

// Season fetches the set of day ids belonging to a season.
func (c *Client) Season(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/season/"+url.PathEscape(id)))
}

// Day fetches the set of game ids scheduled on a single day.
func (c *Client) Day(ctx context.Context, id string) (*httpclient.Response, bool, error) {
	return c.http.TryFetch(ctx, c.url("/api/day/"+url.PathEscape(id)))
}

// FeedTarget selects whether FeedFor queries a player's or a team's feed.
type FeedTarget int

const (
	FeedForPlayer FeedTarget = iota
	FeedForTeam
)

// FeedFor fetches the narrative feed for a single player or team.
func (c *Client) FeedFor(ctx context.Context, target FeedTarget, id string) (*httpclient.Response, bool, error) {
	key := "player"
	if target == FeedForTeam {
		key = "team"
	}
	q := url.Values{key: {id}}
	return c.http.TryFetch(ctx, c.url("/api/feed?"+q.Encode()))
}
