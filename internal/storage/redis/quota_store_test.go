package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

type fakeRedis struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return redis.NewMapStringStringResult(nil, f.readErr)
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestQuotaRoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	store := newWithClient(fake, Config{KeyPrefix: "callify", TTL: 48 * time.Hour})
	ctx := context.Background()

	_, ok, err := store.GetQuota(ctx, "198.51.100.7", "2024-06-01")
	require.NoError(t, err)
	require.False(t, ok)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutQuota(ctx, callify.QuotaRecord{Identity: "198.51.100.7", Date: "2024-06-01", Count: 2, LastUpdated: at}))

	rec, ok, err := store.GetQuota(ctx, "198.51.100.7", "2024-06-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, callify.QuotaRecord{Identity: "198.51.100.7", Date: "2024-06-01", Count: 2, LastUpdated: at}, rec)
	require.Equal(t, 48*time.Hour, fake.ttls["callify:198.51.100.7:2024-06-01"])
}

func TestPutQuotaMergeKeepsLastUpdated(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	store := newWithClient(fake, Config{})
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutQuota(ctx, callify.QuotaRecord{Identity: "a", Date: "2024-06-01", Count: 1, LastUpdated: at}))
	require.NoError(t, store.PutQuota(ctx, callify.QuotaRecord{Identity: "a", Date: "2024-06-01", Count: 2}))

	rec, _, err := store.GetQuota(ctx, "a", "2024-06-01")
	require.NoError(t, err)
	require.Equal(t, 2, rec.Count)
	require.Equal(t, at, rec.LastUpdated)
	require.Contains(t, fake.hashes, "rateLimits:a:2024-06-01")
}

func TestGetQuotaReadError(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	fake.readErr = errors.New("connection refused")
	_, _, err := newWithClient(fake, Config{}).GetQuota(context.Background(), "a", "2024-06-01")

	var sErr *callify.StorageError
	require.ErrorAs(t, err, &sErr)
}

func TestGetQuotaCorruptCount(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	fake.hashes["rateLimits:a:2024-06-01"] = map[string]string{"count": "many"}
	_, _, err := newWithClient(fake, Config{}).GetQuota(context.Background(), "a", "2024-06-01")
	require.Error(t, err)
}

func TestDeleteQuotasBeforeIsNoop(t *testing.T) {
	t.Parallel()

	n, err := newWithClient(newFakeRedis(), Config{}).DeleteQuotasBefore(context.Background(), "2024-06-01")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "not-a-url"})
	require.Error(t, err)
}
