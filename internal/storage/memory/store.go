// Package memory provides in-memory stores for development and tests.
package memory

import (
	"fmt"
	"sync"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

var (
	_ callify.QuotaStore    = (*Store)(nil)
	_ callify.AnalysisStore = (*Store)(nil)
	_ callify.CallLogStore  = (*Store)(nil)
	_ callify.ContactStore  = (*Store)(nil)
)

// Store keeps every record collection in process memory.
type Store struct {
	clock callify.Clock
	ids   callify.IDGenerator

	mu       sync.RWMutex
	quotas   map[string]callify.QuotaRecord
	analyses []callify.AnalysisRecord
	callLogs []callify.CallLogRecord
	contacts map[string]callify.ContactSubmission
}

// NewStore constructs an empty Store. The clock stamps server-assigned
// timestamps and ids names new records.
func NewStore(clock callify.Clock, ids callify.IDGenerator) *Store {
	return &Store{
		clock:    clock,
		ids:      ids,
		quotas:   make(map[string]callify.QuotaRecord),
		contacts: make(map[string]callify.ContactSubmission),
	}
}

func (s *Store) newID() (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	return id, nil
}
