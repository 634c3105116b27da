// Package analysis resolves stored website analyses and produces new ones.
package analysis

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
)

// Resolver looks up the newest analysis for a website.
type Resolver struct {
	store  callify.AnalysisStore
	logger *zap.Logger
}

// NewResolver builds a Resolver over store.
func NewResolver(store callify.AnalysisStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logging.OrNop(logger)}
}

// ResolveLatest returns the newest record whose URL equals websiteURL exactly,
// or nil when there is none or the store cannot be read.
func (r *Resolver) ResolveLatest(ctx context.Context, websiteURL string) *callify.AnalysisRecord {
	rec, err := r.store.LatestAnalysis(ctx, websiteURL)
	switch {
	case errors.Is(err, callify.ErrNotFound):
		r.logger.Debug("no analysis found", zap.String("website_url", websiteURL))
		return nil
	case err != nil:
		r.logger.Warn("analysis lookup failed", zap.String("website_url", websiteURL), zap.Error(err))
		return nil
	}
	return &rec
}
