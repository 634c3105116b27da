package postgres

import (
	"context"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

const insertCallLogSQL = `INSERT INTO call_logs (name, phone_number, website_url, call_id, status, client_address)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text`

// AppendCallLog inserts one audit row.
func (s *Store) AppendCallLog(ctx context.Context, rec callify.CallLogRecord) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, insertCallLogSQL,
		rec.Name,
		rec.PhoneNumber,
		rec.WebsiteURL,
		rec.CallID,
		rec.Status,
		rec.ClientAddress,
	).Scan(&id)
	if err != nil {
		return "", &callify.StorageError{Op: "append call log", Err: err}
	}
	return id, nil
}
