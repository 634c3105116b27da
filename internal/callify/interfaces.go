package callify

import (
	"context"
	"io"
	"time"
)

// QuotaStore persists per-identity daily call counters.
type QuotaStore interface {
	// GetQuota returns the record for identity on date; ok is false when none exists.
	GetQuota(ctx context.Context, identity, date string) (rec QuotaRecord, ok bool, err error)
	// PutQuota merge-upserts the record keyed by identity and date.
	PutQuota(ctx context.Context, rec QuotaRecord) error
	// DeleteQuotasBefore removes records whose date sorts before the given day.
	DeleteQuotasBefore(ctx context.Context, date string) (int, error)
}

// AnalysisStore persists website analyses.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec AnalysisRecord) (string, error)
	// LatestAnalysis returns the newest record for the exact URL or ErrNotFound.
	LatestAnalysis(ctx context.Context, websiteURL string) (AnalysisRecord, error)
	DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CallLogStore appends call audit records.
type CallLogStore interface {
	AppendCallLog(ctx context.Context, rec CallLogRecord) (string, error)
}

// ContactStore persists contact submissions.
type ContactStore interface {
	SaveContact(ctx context.Context, sub ContactSubmission) (string, error)
	UpdateContactStatus(ctx context.Context, id string, status ContactStatus) error
}

// VoiceProvider places and inspects outbound calls.
type VoiceProvider interface {
	Dispatch(ctx context.Context, phoneNumber, script string) (CallResult, error)
	CallStatus(ctx context.Context, callID string) (CallStatus, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
