// Package firestore persists quota counters, analyses, call logs and contact
// submissions in Cloud Firestore collections.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

// Collection names.
const (
	RateLimitsCollection = "rateLimits"
	AnalysesCollection   = "websiteAnalyses"
	CallLogsCollection   = "callLogs"
	ContactsCollection   = "contactSubmissions"
)

const (
	defaultDatabaseID   = "(default)"
	deleteQueryPageSize = 500
)

var (
	_ callify.QuotaStore    = (*Store)(nil)
	_ callify.AnalysisStore = (*Store)(nil)
	_ callify.CallLogStore  = (*Store)(nil)
	_ callify.ContactStore  = (*Store)(nil)
)

// Config selects the project and database.
type Config struct {
	ProjectID  string
	DatabaseID string
}

// Store wraps a Firestore client.
type Store struct {
	client *firestore.Client
}

// New dials Firestore.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore.project_id is required")
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = defaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close firestore client: %w", err)
	}
	return nil
}

// GetQuota reads rateLimits/{identity_date}.
func (s *Store) GetQuota(ctx context.Context, identity, date string) (callify.QuotaRecord, bool, error) {
	snap, err := s.client.Collection(RateLimitsCollection).Doc(callify.QuotaKey(identity, date)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return callify.QuotaRecord{}, false, nil
	}
	if err != nil {
		return callify.QuotaRecord{}, false, &callify.StorageError{Op: "get quota", Err: err}
	}
	var rec callify.QuotaRecord
	if err := snap.DataTo(&rec); err != nil {
		return callify.QuotaRecord{}, false, &callify.StorageError{Op: "decode quota", Err: err}
	}
	return rec, true, nil
}

// PutQuota merges the counter fields into rateLimits/{identity_date}.
func (s *Store) PutQuota(ctx context.Context, rec callify.QuotaRecord) error {
	_, err := s.client.Collection(RateLimitsCollection).Doc(callify.QuotaKey(rec.Identity, rec.Date)).
		Set(ctx, quotaFields(rec), firestore.MergeAll)
	if err != nil {
		return &callify.StorageError{Op: "put quota", Err: err}
	}
	return nil
}

func quotaFields(rec callify.QuotaRecord) map[string]any {
	fields := map[string]any{
		"identity": rec.Identity,
		"date":     rec.Date,
		"count":    rec.Count,
	}
	if rec.LastUpdated.IsZero() {
		fields["lastUpdated"] = firestore.ServerTimestamp
	} else {
		fields["lastUpdated"] = rec.LastUpdated
	}
	return fields
}

// DeleteQuotasBefore removes counters whose date sorts before date.
func (s *Store) DeleteQuotasBefore(ctx context.Context, date string) (int, error) {
	q := s.client.Collection(RateLimitsCollection).Where("date", "<", date)
	n, err := s.deleteMatching(ctx, q)
	if err != nil {
		return n, &callify.StorageError{Op: "delete quotas", Err: err}
	}
	return n, nil
}

// SaveAnalysis adds a document with a server timestamp.
func (s *Store) SaveAnalysis(ctx context.Context, rec callify.AnalysisRecord) (string, error) {
	rec.Timestamp = time.Time{}
	ref, _, err := s.client.Collection(AnalysesCollection).Add(ctx, rec)
	if err != nil {
		return "", &callify.StorageError{Op: "save analysis", Err: err}
	}
	return ref.ID, nil
}

// LatestAnalysis returns the newest analysis whose websiteUrl equals websiteURL.
func (s *Store) LatestAnalysis(ctx context.Context, websiteURL string) (callify.AnalysisRecord, error) {
	iter := s.client.Collection(AnalysesCollection).
		Where("websiteUrl", "==", websiteURL).
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return callify.AnalysisRecord{}, callify.ErrNotFound
	}
	if err != nil {
		return callify.AnalysisRecord{}, &callify.StorageError{Op: "latest analysis", Err: err}
	}
	var rec callify.AnalysisRecord
	if err := snap.DataTo(&rec); err != nil {
		return callify.AnalysisRecord{}, &callify.StorageError{Op: "decode analysis", Err: err}
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}

// DeleteAnalysesBefore removes analyses stamped before cutoff.
func (s *Store) DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	q := s.client.Collection(AnalysesCollection).Where("timestamp", "<", cutoff)
	n, err := s.deleteMatching(ctx, q)
	if err != nil {
		return n, &callify.StorageError{Op: "delete analyses", Err: err}
	}
	return n, nil
}

// AppendCallLog adds a callLogs document with a server timestamp.
func (s *Store) AppendCallLog(ctx context.Context, rec callify.CallLogRecord) (string, error) {
	rec.Timestamp = time.Time{}
	ref, _, err := s.client.Collection(CallLogsCollection).Add(ctx, rec)
	if err != nil {
		return "", &callify.StorageError{Op: "append call log", Err: err}
	}
	return ref.ID, nil
}

// SaveContact adds a contactSubmissions document with a server timestamp.
func (s *Store) SaveContact(ctx context.Context, sub callify.ContactSubmission) (string, error) {
	sub.Timestamp = time.Time{}
	ref, _, err := s.client.Collection(ContactsCollection).Add(ctx, sub)
	if err != nil {
		return "", &callify.StorageError{Op: "save contact", Err: err}
	}
	return ref.ID, nil
}

// UpdateContactStatus sets the status field of an existing submission.
func (s *Store) UpdateContactStatus(ctx context.Context, id string, st callify.ContactStatus) error {
	_, err := s.client.Collection(ContactsCollection).Doc(id).
		Update(ctx, []firestore.Update{{Path: "status", Value: string(st)}})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("contact %s: %w", id, callify.ErrNotFound)
	}
	if err != nil {
		return &callify.StorageError{Op: "update contact status", Err: err}
	}
	return nil
}

// deleteMatching deletes every document matched by q in pages, using a
// BulkWriter per page.
func (s *Store) deleteMatching(ctx context.Context, q firestore.Query) (int, error) {
	deleted := 0
	for {
		iter := q.Limit(deleteQueryPageSize).Documents(ctx)
		bw := s.client.BulkWriter(ctx)
		var jobs []*firestore.BulkWriterJob
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				bw.End()
				return deleted, fmt.Errorf("query documents: %w", err)
			}
			job, err := bw.Delete(snap.Ref)
			if err != nil {
				iter.Stop()
				bw.End()
				return deleted, fmt.Errorf("enqueue delete: %w", err)
			}
			jobs = append(jobs, job)
		}
		iter.Stop()
		bw.End()

		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return deleted, fmt.Errorf("delete document: %w", err)
			}
			deleted++
		}
		if len(jobs) < deleteQueryPageSize {
			return deleted, nil
		}
	}
}
