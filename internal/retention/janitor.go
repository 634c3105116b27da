// Package retention prunes expired quota counters and website analyses.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

// Collection names used in reports and metrics.
const (
	CollectionQuotas   = "rateLimits"
	CollectionAnalyses = "websiteAnalyses"
)

// Config sets the retention windows and the pass interval.
type Config struct {
	QuotaDays    int
	AnalysisDays int
	Interval     time.Duration
}

// Result is the outcome of pruning one collection.
type Result struct {
	Deleted int
	Err     error
}

// Report summarizes one retention pass.
type Report map[string]Result

// Janitor deletes records older than the configured windows.
type Janitor struct {
	quotas   callify.QuotaStore
	analyses callify.AnalysisStore
	clock    callify.Clock
	cfg      Config
	logger   *zap.Logger
}

// NewJanitor builds a Janitor, defaulting to 7 days of quota counters, 30 days
// of analyses and a daily pass.
func NewJanitor(quotas callify.QuotaStore, analyses callify.AnalysisStore, clock callify.Clock, cfg Config, logger *zap.Logger) *Janitor {
	if cfg.QuotaDays <= 0 {
		cfg.QuotaDays = 7
	}
	if cfg.AnalysisDays <= 0 {
		cfg.AnalysisDays = 30
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Janitor{
		quotas:   quotas,
		analyses: analyses,
		clock:    clock,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
	}
}

// RunOnce performs one pass. Failures are logged and reported per collection.
func (j *Janitor) RunOnce(ctx context.Context) Report {
	now := j.clock.Now().UTC()
	report := make(Report, 2)

	quotaCutoff := callify.DayOf(now.AddDate(0, 0, -j.cfg.QuotaDays))
	deleted, err := j.quotas.DeleteQuotasBefore(ctx, quotaCutoff)
	report[CollectionQuotas] = j.record(CollectionQuotas, deleted, err, zap.String("cutoff", quotaCutoff))

	analysisCutoff := now.AddDate(0, 0, -j.cfg.AnalysisDays)
	deleted, err = j.analyses.DeleteAnalysesBefore(ctx, analysisCutoff)
	report[CollectionAnalyses] = j.record(CollectionAnalyses, deleted, err, zap.Time("cutoff", analysisCutoff))

	return report
}

func (j *Janitor) record(collection string, deleted int, err error, cutoff zap.Field) Result {
	logger := j.logger.With(zap.String("collection", collection), cutoff)
	if err != nil {
		logger.Error("retention pass failed", zap.Int("deleted", deleted), zap.Error(err))
	} else {
		logger.Info("retention pass complete", zap.Int("deleted", deleted))
	}
	telemetry.ObserveRetention(collection, deleted)
	return Result{Deleted: deleted, Err: err}
}

// Run performs a pass immediately and then on every interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}
