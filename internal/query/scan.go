package query

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/chron/internal/entity"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntityVersion(row rowScanner, kind entity.Kind) (*entity.EntityVersion, error) {
	var (
		id        string
		validFrom time.Time
		validTo   *time.Time
		data      []byte
	)
	if err := row.Scan(&id, &validFrom, &validTo, &data); err != nil {
		return nil, err
	}
	return &entity.EntityVersion{
		Kind:      kind.String(),
		EntityID:  id,
		ValidFrom: validFrom,
		ValidTo:   validTo,
		Data:      json.RawMessage(data),
	}, nil
}

func scanEntityVersions(rows pgx.Rows, kind entity.Kind) ([]entity.EntityVersion, error) {
	var items []entity.EntityVersion
	for rows.Next() {
		ev, err := scanEntityVersion(rows, kind)
		if err != nil {
			return nil, err
		}
		items = append(items, *ev)
	}
	return items, rows.Err()
}
