// Package query implements the read side of the bitemporal store (§4.D):
// point-in-time lookup, entity listing, version history with keyset
// pagination, and streamed full scans for bulk rebuild.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/chron/internal/dbpool"
	"github.com/albapepper/chron/internal/entity"
)

// Order is the direction versions/entities are returned in.
type Order int

const (
	OrderAsc Order = iota
	OrderDesc
)

func ParseOrder(s string) Order {
	if strings.EqualFold(s, "desc") {
		return OrderDesc
	}
	return OrderAsc
}

// defaultCount returns the unclamped default page size for kind, per
// spec.md §4.D: games default to 100, everything else to 1000.
func defaultCount(kind entity.Kind) int {
	if kind == entity.KindGame {
		return 100
	}
	return 1000
}

// clampCount applies the requested-over-1000 clamp.
func clampCount(kind entity.Kind, requested int) int {
	if requested <= 0 {
		return defaultCount(kind)
	}
	if requested > 1000 {
		return 1000
	}
	return requested
}

// Layer is the query-layer handle, backed by the shared connection pool.
type Layer struct {
	pool *dbpool.Pool
}

func New(pool *dbpool.Pool) *Layer {
	return &Layer{pool: pool}
}

// GetAt returns the single version of (kind, id) whose interval contains t:
// valid_from <= t < coalesce(valid_to, +infinity).
func (l *Layer) GetAt(ctx context.Context, kind entity.Kind, id string, t time.Time) (*entity.EntityVersion, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT v.entity_id, v.valid_from, v.valid_to, o.data
		 FROM versions v JOIN objects o ON o.hash = v.hash
		 WHERE v.kind = $1 AND v.entity_id = $2 AND v.valid_from <= $3
		   AND (v.valid_to IS NULL OR v.valid_to > $3)
		 LIMIT 1`,
		int16(kind), id, t)

	ev, err := scanEntityVersion(row, kind)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get_at(%s, %s, %s): %w", kind, id, t, err)
	}
	return ev, nil
}

// ListParams bundles the filters every list-ish endpoint accepts, per
// spec.md §4.D/§6. Before/After are independent valid_from window bounds
// (<=/>=); Page is the separate keyset pivot carried from the previous
// page's NextPage token (ground: original_source chron-db/src/queries.rs's
// GetEntitiesQuery/GetVersionsQuery, which keep `before`/`after` and `page`
// as distinct fields).
type ListParams struct {
	IDs    []string
	At     *time.Time // nil means "open versions only"
	Before *time.Time
	After  *time.Time
	Page   *entity.PageToken
	Order  Order
	Count  int
}

// Page is one page of entity versions plus the opaque token for the next.
type Page struct {
	Items    []entity.EntityVersion
	NextPage *entity.PageToken
}

// List returns the set of latest versions as of p.At (or open versions if
// p.At is nil), optionally filtered to p.IDs, p.Before/p.After, and
// keyset-paginated by (valid_from, entity_id) in the requested order
// (ground: original_source queries.rs's get_entities).
func (l *Layer) List(ctx context.Context, kind entity.Kind, p ListParams) (Page, error) {
	var b strings.Builder
	args := []any{int16(kind)}
	b.WriteString(`SELECT v.entity_id, v.valid_from, v.valid_to, o.data
		FROM versions v JOIN objects o ON o.hash = v.hash
		WHERE v.kind = $1`)

	if p.At != nil {
		args = append(args, *p.At)
		fmt.Fprintf(&b, " AND v.valid_from <= $%d AND (v.valid_to IS NULL OR v.valid_to > $%d)", len(args), len(args))
	} else {
		b.WriteString(" AND v.valid_to IS NULL")
	}

	if len(p.IDs) > 0 {
		args = append(args, p.IDs)
		fmt.Fprintf(&b, " AND v.entity_id = ANY($%d)", len(args))
	}

	if p.Before != nil {
		args = append(args, *p.Before)
		fmt.Fprintf(&b, " AND v.valid_from <= $%d", len(args))
	}
	if p.After != nil {
		args = append(args, *p.After)
		fmt.Fprintf(&b, " AND v.valid_from >= $%d", len(args))
	}

	order := "ASC"
	cmp := ">"
	if p.Order == OrderDesc {
		order = "DESC"
		cmp = "<"
	}
	if p.Page != nil {
		args = append(args, p.Page.Timestamp, p.Page.EntityID)
		tsArg, idArg := len(args)-1, len(args)
		fmt.Fprintf(&b, " AND (v.valid_from, v.entity_id) %s ($%d, $%d)", cmp, tsArg, idArg)
	}

	count := clampCount(kind, p.Count)
	fmt.Fprintf(&b, " ORDER BY v.valid_from %s, v.entity_id %s LIMIT %d", order, order, count)

	rows, err := l.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return Page{}, fmt.Errorf("list(%s): %w", kind, err)
	}
	defer rows.Close()

	items, err := scanEntityVersions(rows, kind)
	if err != nil {
		return Page{}, fmt.Errorf("list(%s): %w", kind, err)
	}

	page := Page{Items: items}
	if len(items) > 0 {
		last := items[len(items)-1]
		page.NextPage = &entity.PageToken{Timestamp: last.ValidFrom, EntityID: last.EntityID}
	}
	return page, nil
}

// Versions returns the version history of the given entities (or all
// entities of kind, if IDs is empty) with valid_from in [after, before],
// jointly ordered by (valid_from, entity_id) in the requested direction.
// Before/after are independent window bounds; p.Page is the sole keyset
// pivot — ascending pages compare strictly greater than the pivot,
// descending pages strictly less than it (ground: original_source
// queries.rs's get_versions, spec.md §4.D).
func (l *Layer) Versions(ctx context.Context, kind entity.Kind, p ListParams) (Page, error) {
	var b strings.Builder
	args := []any{int16(kind)}
	b.WriteString(`SELECT v.entity_id, v.valid_from, v.valid_to, o.data
		FROM versions v JOIN objects o ON o.hash = v.hash
		WHERE v.kind = $1`)

	if len(p.IDs) > 0 {
		args = append(args, p.IDs)
		fmt.Fprintf(&b, " AND v.entity_id = ANY($%d)", len(args))
	}

	if p.Before != nil {
		args = append(args, *p.Before)
		fmt.Fprintf(&b, " AND v.valid_from <= $%d", len(args))
	}
	if p.After != nil {
		args = append(args, *p.After)
		fmt.Fprintf(&b, " AND v.valid_from >= $%d", len(args))
	}

	order := "ASC"
	cmp := ">"
	if p.Order == OrderDesc {
		order = "DESC"
		cmp = "<"
	}

	if p.Page != nil {
		args = append(args, p.Page.Timestamp, p.Page.EntityID)
		tsArg, idArg := len(args)-1, len(args)
		fmt.Fprintf(&b, " AND (v.valid_from, v.entity_id) %s ($%d, $%d)", cmp, tsArg, idArg)
	}

	count := clampCount(kind, p.Count)
	fmt.Fprintf(&b, " ORDER BY v.valid_from %s, v.entity_id %s LIMIT %d", order, order, count)

	rows, err := l.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return Page{}, fmt.Errorf("versions(%s): %w", kind, err)
	}
	defer rows.Close()

	items, err := scanEntityVersions(rows, kind)
	if err != nil {
		return Page{}, fmt.Errorf("versions(%s): %w", kind, err)
	}

	page := Page{Items: items}
	if len(items) > 0 {
		last := items[len(items)-1]
		page.NextPage = &entity.PageToken{Timestamp: last.ValidFrom, EntityID: last.EntityID}
	}
	return page, nil
}

// ScanAllVersions streams every version of kind in ascending valid_from
// order, for bulk derived-projection rebuilds (§4.D scan_all_versions).
// Callers must close the returned rows.
func (l *Layer) ScanAllVersions(ctx context.Context, kind entity.Kind) (pgx.Rows, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT v.entity_id, v.valid_from, v.valid_to, o.data
		 FROM versions v JOIN objects o ON o.hash = v.hash
		 WHERE v.kind = $1 ORDER BY v.valid_from ASC`,
		int16(kind))
	if err != nil {
		return nil, fmt.Errorf("scan_all_versions(%s): %w", kind, err)
	}
	return rows, nil
}
