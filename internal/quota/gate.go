// Package quota enforces the per-client daily call limit.
//
// The gate reads the current counter and then writes count+1. The read and the
// write are separate store operations, so two concurrent requests from the same
// identity can both observe the pre-increment count and both be admitted. A
// store failure never blocks a call: the gate fails open and logs.
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

// DefaultDailyLimit is the number of calls an identity may place per UTC day.
const DefaultDailyLimit = 3

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed  bool
	Limit    int
	Current  int
	ResetsAt time.Time
	// FailOpen is set when the store could not be read and the call was admitted anyway.
	FailOpen bool
}

// Err returns the RateLimitError for a denied decision, or nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &callify.RateLimitError{Limit: d.Limit, Current: d.Current, ResetsAt: d.ResetsAt}
}

// Gate checks and consumes daily quota.
type Gate struct {
	store  callify.QuotaStore
	clock  callify.Clock
	limit  int
	logger *zap.Logger
}

// NewGate builds a Gate. A limit of zero or less disables enforcement.
func NewGate(store callify.QuotaStore, clock callify.Clock, limit int, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		clock:  clock,
		limit:  limit,
		logger: logging.OrNop(logger),
	}
}

// Limit returns the configured daily limit.
func (g *Gate) Limit() int {
	return g.limit
}

// CheckAndConsume admits or denies a call for identity on the day containing
// today and, when admitted, records the consumption.
func (g *Gate) CheckAndConsume(ctx context.Context, identity string, today time.Time) Decision {
	day := callify.DayOf(today)
	resetsAt := callify.EndOfDay(today)
	logger := g.logger.With(zap.String("identity", identity), zap.String("date", day))

	if g.limit <= 0 {
		return Decision{Allowed: true, Limit: g.limit, ResetsAt: resetsAt}
	}

	rec, ok, err := g.store.GetQuota(ctx, identity, day)
	if err != nil {
		logger.Warn("quota lookup failed, allowing call", zap.Error(err))
		telemetry.ObserveQuotaDecision(telemetry.QuotaFailOpen)
		return Decision{Allowed: true, Limit: g.limit, ResetsAt: resetsAt, FailOpen: true}
	}

	count := 0
	if ok && rec.Date == day {
		count = rec.Count
	}

	if count >= g.limit {
		logger.Info("quota exhausted", zap.Int("count", count), zap.Int("limit", g.limit))
		telemetry.ObserveQuotaDecision(telemetry.QuotaDenied)
		return Decision{Allowed: false, Limit: g.limit, Current: count, ResetsAt: resetsAt}
	}

	next := callify.QuotaRecord{
		Identity:    identity,
		Date:        day,
		Count:       count + 1,
		LastUpdated: g.clock.Now(),
	}
	if err := g.store.PutQuota(ctx, next); err != nil {
		logger.Warn("quota write failed, allowing call", zap.Error(err))
		telemetry.ObserveQuotaDecision(telemetry.QuotaFailOpen)
		return Decision{Allowed: true, Limit: g.limit, Current: count, ResetsAt: resetsAt, FailOpen: true}
	}

	logger.Debug("quota consumed", zap.Int("count", next.Count), zap.Int("limit", g.limit))
	telemetry.ObserveQuotaDecision(telemetry.QuotaAllowed)
	return Decision{Allowed: true, Limit: g.limit, Current: next.Count, ResetsAt: resetsAt}
}
