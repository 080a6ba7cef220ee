// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Entity kind table — single source of truth for HTTP/query validation
// --------------------------------------------------------------------------

// KnownKinds lists the entity kind names accepted in inbound query params.
var KnownKinds = []string{
	"state", "time", "league", "team", "player", "game", "game_event",
	"team_lite", "player_lite", "talk", "talk_batting", "talk_pitching",
	"talk_baserunning", "talk_defense", "location", "message", "schedule",
}

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Upstream game API
	UpstreamBaseURL  string
	HTTPConcurrency  int // global semaphore permits, spec.md §4.F
	HTTPUserAgent    string
	MapsAPIKey       string

	// Ingest scheduler
	Jitter                 bool
	MatviewRefreshInterval time.Duration

	// Export
	ExportPath string
	DuckDBPath string

	// SWR cache
	CacheEnabled          bool
	CacheCapacity         int
	CacheDefaultTTL       time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("CHRON_DATABASE_URL", envOr("DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("CHRON_DATABASE_URL or DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 5),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 50),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 3001)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", false),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 600),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		UpstreamBaseURL: envOr("UPSTREAM_BASE_URL", "https://api.upstream.example"),
		HTTPConcurrency: envInt("HTTP_CONCURRENCY", 20),
		HTTPUserAgent:   envOr("HTTP_USER_AGENT", "chron/1.0"),
		MapsAPIKey:      envOr("MAPS_API_KEY", ""),

		Jitter:                 envBool("INGEST_JITTER", false),
		MatviewRefreshInterval: time.Duration(envInt("MATVIEW_REFRESH_SECONDS", 120)) * time.Second,

		ExportPath: envOr("EXPORT_PATH", ""),
		DuckDBPath: envOr("DUCKDB_PATH", ""),

		CacheEnabled:    envBool("CACHE_ENABLED", true),
		CacheCapacity:   envInt("CACHE_CAPACITY", 4096),
		CacheDefaultTTL: time.Duration(envInt("CACHE_DEFAULT_TTL_SECONDS", 300)) * time.Second,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
