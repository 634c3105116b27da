package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

const (
	insertContactSQL = `INSERT INTO contact_submissions (name, email, message, client_address, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text`

	updateContactStatusSQL = `UPDATE contact_submissions SET status = $1 WHERE id = $2::uuid`
)

// SaveContact inserts a submission.
func (s *Store) SaveContact(ctx context.Context, sub callify.ContactSubmission) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, insertContactSQL, sub.Name, sub.Email, sub.Message, sub.ClientAddress, string(sub.Status)).Scan(&id)
	if err != nil {
		return "", &callify.StorageError{Op: "save contact", Err: err}
	}
	return id, nil
}

// UpdateContactStatus sets the delivery status of a stored submission.
func (s *Store) UpdateContactStatus(ctx context.Context, id string, status callify.ContactStatus) error {
	tag, err := s.pool.Exec(ctx, updateContactStatusSQL, string(status), id)
	if err != nil {
		return &callify.StorageError{Op: "update contact status", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, callify.ErrNotFound)
	}
	return nil
}
