package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

const (
	insertAnalysisSQL = `INSERT INTO website_analyses (website_url, domain, analysis, snapshot_uri)
VALUES ($1, $2, $3, $4)
RETURNING id::text`

	latestAnalysisSQL = `SELECT id::text, website_url, domain, analysis, snapshot_uri, created_at
FROM website_analyses
WHERE website_url = $1
ORDER BY created_at DESC
LIMIT 1`

	deleteAnalysesSQL = `DELETE FROM website_analyses WHERE created_at < $1`
)

// SaveAnalysis inserts rec. The id and timestamp are assigned by the database.
func (s *Store) SaveAnalysis(ctx context.Context, rec callify.AnalysisRecord) (string, error) {
	body, err := json.Marshal(rec.Analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	var id string
	if err := s.pool.QueryRow(ctx, insertAnalysisSQL, rec.WebsiteURL, rec.Domain, body, rec.SnapshotURI).Scan(&id); err != nil {
		return "", &callify.StorageError{Op: "save analysis", Err: err}
	}
	return id, nil
}

// LatestAnalysis returns the newest analysis stored for websiteURL.
func (s *Store) LatestAnalysis(ctx context.Context, websiteURL string) (callify.AnalysisRecord, error) {
	var (
		rec  callify.AnalysisRecord
		body []byte
	)
	err := s.pool.QueryRow(ctx, latestAnalysisSQL, websiteURL).
		Scan(&rec.ID, &rec.WebsiteURL, &rec.Domain, &body, &rec.SnapshotURI, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return callify.AnalysisRecord{}, callify.ErrNotFound
	}
	if err != nil {
		return callify.AnalysisRecord{}, &callify.StorageError{Op: "latest analysis", Err: err}
	}
	if err := json.Unmarshal(body, &rec.Analysis); err != nil {
		return callify.AnalysisRecord{}, fmt.Errorf("decode analysis %s: %w", rec.ID, err)
	}
	return rec, nil
}

// DeleteAnalysesBefore removes analyses created before cutoff.
func (s *Store) DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteAnalysesSQL, cutoff)
	if err != nil {
		return 0, &callify.StorageError{Op: "delete analyses", Err: err}
	}
	return int(tag.RowsAffected()), nil
}
