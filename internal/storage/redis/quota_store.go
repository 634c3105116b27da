// Package redis keeps daily quota counters in Redis hashes that expire on
// their own.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

const defaultPrefix = "rateLimits"

var _ callify.QuotaStore = (*QuotaStore)(nil)

// Config controls key layout and expiry.
type Config struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

type hashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// QuotaStore stores one hash per identity and day.
type QuotaStore struct {
	client hashClient
	prefix string
	ttl    time.Duration
}

// New parses cfg.URL and builds a QuotaStore.
func New(cfg Config) (*QuotaStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return newWithClient(redis.NewClient(opt), cfg), nil
}

func newWithClient(client hashClient, cfg Config) *QuotaStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 8 * 24 * time.Hour
	}
	return &QuotaStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *QuotaStore) key(identity, date string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, identity, date)
}

// GetQuota reads the hash for identity on date.
func (s *QuotaStore) GetQuota(ctx context.Context, identity, date string) (callify.QuotaRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(identity, date)).Result()
	if err != nil {
		return callify.QuotaRecord{}, false, &callify.StorageError{Op: "get quota", Err: err}
	}
	if len(fields) == 0 {
		return callify.QuotaRecord{}, false, nil
	}
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return callify.QuotaRecord{}, false, &callify.StorageError{Op: "decode quota", Err: err}
	}
	rec := callify.QuotaRecord{Identity: fields["identity"], Date: fields["date"], Count: count}
	if raw := fields["lastUpdated"]; raw != "" {
		if rec.LastUpdated, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return callify.QuotaRecord{}, false, &callify.StorageError{Op: "decode quota", Err: err}
		}
	}
	return rec, true, nil
}

// PutQuota overwrites the hash fields and refreshes the expiry.
func (s *QuotaStore) PutQuota(ctx context.Context, rec callify.QuotaRecord) error {
	key := s.key(rec.Identity, rec.Date)
	values := []any{"identity", rec.Identity, "date", rec.Date, "count", rec.Count}
	if !rec.LastUpdated.IsZero() {
		values = append(values, "lastUpdated", rec.LastUpdated.UTC().Format(time.RFC3339Nano))
	}
	if err := s.client.HSet(ctx, key, values...).Err(); err != nil {
		return &callify.StorageError{Op: "put quota", Err: err}
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return &callify.StorageError{Op: "expire quota", Err: err}
	}
	return nil
}

// DeleteQuotasBefore is a no-op: keys expire after the configured TTL.
func (s *QuotaStore) DeleteQuotasBefore(context.Context, string) (int, error) {
	return 0, nil
}

// Ping checks connectivity.
func (s *QuotaStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *QuotaStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
