package memory

import (
	"context"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// AppendCallLog appends rec with a server-assigned id and timestamp.
func (s *Store) AppendCallLog(_ context.Context, rec callify.CallLogRecord) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	rec.ID = id
	rec.Timestamp = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.callLogs = append(s.callLogs, rec)
	return id, nil
}

// CallLogs returns a copy of every logged call in insertion order.
func (s *Store) CallLogs() []callify.CallLogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]callify.CallLogRecord, len(s.callLogs))
	copy(out, s.callLogs)
	return out
}
