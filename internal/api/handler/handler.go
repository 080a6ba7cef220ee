// Package handler implements the read API's HTTP handlers (spec.md §6):
// thin wrappers around the query layer, the stats aggregator, and a pair of
// SWR-cached precomputed views, returning either Postgres JSON passed
// through untouched or a streamed stats response.
package handler

import (
	"net/http"
	"time"

	"github.com/albapepper/chron/internal/api/respond"
	"github.com/albapepper/chron/internal/config"
	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/export"
	"github.com/albapepper/chron/internal/query"
	"github.com/albapepper/chron/internal/swr"
)

// Handler holds the dependencies every route handler shares.
type Handler struct {
	Pool    *dbpool.Pool
	Query   *query.Layer
	Cfg     *config.Config
	Export  *export.Manager // nil if DuckDB export is not configured
	Agg     *swr.Cache[[]byte]
}

// New constructs a Handler. exportMgr may be nil when DuckDB export is not
// configured.
func New(pool *dbpool.Pool, cfg *config.Config, exportMgr *export.Manager) *Handler {
	return &Handler{
		Pool:   pool,
		Query:  query.New(pool),
		Cfg:    cfg,
		Export: exportMgr,
		Agg:    swr.New[[]byte](cfg.CacheCapacity, cfg.CacheDefaultTTL, nil),
	}
}

// Root serves basic API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "Chron",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/swagger/",
	})
}

// HealthCheck returns basic liveness status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.Pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": "connected",
	})
}

// HealthCheckCache reports the SWR cache's configured capacity and TTL —
// there is no per-key introspection API on swr.Cache, unlike the teacher's
// plain map-backed cache, so this is a configuration echo rather than live
// occupancy stats.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"enabled":  h.Cfg.CacheEnabled,
		"capacity": h.Cfg.CacheCapacity,
		"ttl":      h.Cfg.CacheDefaultTTL.String(),
	})
}
