package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

const (
	selectQuotaSQL = `SELECT identity, day, count, last_updated FROM rate_limits WHERE identity = $1 AND day = $2`

	upsertQuotaSQL = `INSERT INTO rate_limits (identity, day, count, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity, day) DO UPDATE
SET count = EXCLUDED.count, last_updated = EXCLUDED.last_updated`

	deleteQuotasSQL = `DELETE FROM rate_limits WHERE day < $1`
)

// GetQuota reads the counter for identity on date.
func (s *Store) GetQuota(ctx context.Context, identity, date string) (callify.QuotaRecord, bool, error) {
	var rec callify.QuotaRecord
	err := s.pool.QueryRow(ctx, selectQuotaSQL, identity, date).Scan(&rec.Identity, &rec.Date, &rec.Count, &rec.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return callify.QuotaRecord{}, false, nil
	}
	if err != nil {
		return callify.QuotaRecord{}, false, &callify.StorageError{Op: "get quota", Err: err}
	}
	return rec, true, nil
}

// PutQuota writes the count computed by the caller. It does not increment in
// SQL, so concurrent writers race exactly as they would on any other backend.
func (s *Store) PutQuota(ctx context.Context, rec callify.QuotaRecord) error {
	if _, err := s.pool.Exec(ctx, upsertQuotaSQL, rec.Identity, rec.Date, rec.Count, rec.LastUpdated); err != nil {
		return &callify.StorageError{Op: "put quota", Err: err}
	}
	return nil
}

// DeleteQuotasBefore removes counters dated before date.
func (s *Store) DeleteQuotasBefore(ctx context.Context, date string) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteQuotasSQL, date)
	if err != nil {
		return 0, &callify.StorageError{Op: "delete quotas", Err: err}
	}
	return int(tag.RowsAffected()), nil
}
