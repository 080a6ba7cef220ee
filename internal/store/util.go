package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsNoRows reports whether err is pgx.ErrNoRows, for callers outside this
// package that run their own queries against the shared pool (e.g.
// internal/ingest's cached-time lookup).
func IsNoRows(err error) bool {
	return isNoRows(err)
}
