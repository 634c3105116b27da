package memory

import (
	"context"
	"time"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// SaveAnalysis appends rec with a server-assigned id and timestamp.
func (s *Store) SaveAnalysis(_ context.Context, rec callify.AnalysisRecord) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	rec.ID = id
	rec.Timestamp = s.clock.Now()
	rec.Analysis.Services = append([]string(nil), rec.Analysis.Services...)
	rec.Analysis.Questions = append([]string(nil), rec.Analysis.Questions...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, rec)
	return id, nil
}

// LatestAnalysis returns the newest record whose URL matches exactly.
func (s *Store) LatestAnalysis(_ context.Context, websiteURL string) (callify.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest callify.AnalysisRecord
		found  bool
	)
	for _, rec := range s.analyses {
		if rec.WebsiteURL != websiteURL {
			continue
		}
		if !found || !rec.Timestamp.Before(latest.Timestamp) {
			latest = rec
			found = true
		}
	}
	if !found {
		return callify.AnalysisRecord{}, callify.ErrNotFound
	}
	return latest, nil
}

// DeleteAnalysesBefore removes records stamped before cutoff.
func (s *Store) DeleteAnalysesBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.analyses[:0]
	deleted := 0
	for _, rec := range s.analyses {
		if rec.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.analyses = kept
	return deleted, nil
}
