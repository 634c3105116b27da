package memory

import (
	"context"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// GetQuota returns the record stored under the identity/date key.
func (s *Store) GetQuota(_ context.Context, identity, date string) (callify.QuotaRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.quotas[callify.QuotaKey(identity, date)]
	return rec, ok, nil
}

// PutQuota merges rec into the record stored under its key.
func (s *Store) PutQuota(_ context.Context, rec callify.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := callify.QuotaKey(rec.Identity, rec.Date)
	existing := s.quotas[key]
	existing.Identity = rec.Identity
	existing.Date = rec.Date
	existing.Count = rec.Count
	if !rec.LastUpdated.IsZero() {
		existing.LastUpdated = rec.LastUpdated
	}
	s.quotas[key] = existing
	return nil
}

// DeleteQuotasBefore removes records dated before date.
func (s *Store) DeleteQuotasBefore(_ context.Context, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, rec := range s.quotas {
		if rec.Date < date {
			delete(s.quotas, key)
			deleted++
		}
	}
	return deleted, nil
}
