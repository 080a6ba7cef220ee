// Package api wires the chi router, middleware stack, and route table for
// the read API (spec.md §6).
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/chron/internal/api/handler"
	"github.com/albapepper/chron/internal/config"
	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/export"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes.
func NewRouter(pool *dbpool.Pool, cfg *config.Config, exportMgr *export.Manager) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip/deflate negotiated by Accept-Encoding; brotli and zstd are not offered

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "Link", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, cfg, exportMgr)

	// --- Routes ---
	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/chron/v0", func(r chi.Router) {
		r.Get("/entities", h.GetEntities)
		r.Get("/versions", h.GetVersions)
	})

	r.Get("/games", h.GetGames)
	r.Get("/teams", h.GetTeams)
	r.Get("/leagues", h.GetLeagues)

	r.Get("/player-stats", h.GetPlayerStats)
	r.Get("/league-aggregate-stats", h.GetLeagueAggregateStats)
	r.Get("/league-averages", h.GetLeagueAverages)

	r.Get("/stats", h.GetStats)
	r.Get("/locations", h.GetLocations)
	r.Get("/scorigami", h.GetScorigami)

	r.Get("/export", h.GetExport)

	return r
}
