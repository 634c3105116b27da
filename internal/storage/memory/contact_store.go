package memory

import (
	"context"
	"fmt"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// SaveContact stores sub with a server-assigned id and timestamp.
func (s *Store) SaveContact(_ context.Context, sub callify.ContactSubmission) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	sub.ID = id
	sub.Timestamp = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[id] = sub
	return id, nil
}

// UpdateContactStatus sets the delivery status of a stored submission.
func (s *Store) UpdateContactStatus(_ context.Context, id string, status callify.ContactStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, callify.ErrNotFound)
	}
	sub.Status = status
	s.contacts[id] = sub
	return nil
}

// Contact returns the stored submission with id.
func (s *Store) Contact(id string) (callify.ContactSubmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.contacts[id]
	return sub, ok
}
