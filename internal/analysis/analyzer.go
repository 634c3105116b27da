package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	collyfetcher "github.com/JakeFAU/callify-backend/internal/fetcher/colly"
	"github.com/JakeFAU/callify-backend/internal/logging"
)

// Completer sends one JSON-mode prompt to a language model.
type Completer interface {
	Validate() error
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// TextFetcher loads the visible text of a web page.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (collyfetcher.Page, error)
}

// AnalyzerConfig tunes the Analyzer.
type AnalyzerConfig struct {
	Persona        string
	SnapshotPrefix string
	FetchTimeout   time.Duration
}

// Analyzer asks the language model to describe a business website and stores
// the result for later calls.
type Analyzer struct {
	cfg       AnalyzerConfig
	completer Completer
	fetcher   TextFetcher
	blobs     callify.BlobStore
	hasher    callify.Hasher
	store     callify.AnalysisStore
	logger    *zap.Logger
}

// NewAnalyzer wires an Analyzer. fetcher and blobs may be nil, in which case
// analyses are produced from the domain alone and no snapshot is kept.
func NewAnalyzer(
	cfg AnalyzerConfig,
	completer Completer,
	fetcher TextFetcher,
	blobs callify.BlobStore,
	hasher callify.Hasher,
	store callify.AnalysisStore,
	logger *zap.Logger,
) *Analyzer {
	if cfg.Persona == "" {
		cfg.Persona = "Janie"
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Analyzer{
		cfg:       cfg,
		completer: completer,
		fetcher:   fetcher,
		blobs:     blobs,
		hasher:    hasher,
		store:     store,
		logger:    logging.OrNop(logger),
	}
}

// Analyze produces and persists an analysis of websiteURL. Persistence and
// page fetch failures are logged and do not fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context, websiteURL string) (callify.Analysis, error) {
	websiteURL = strings.TrimSpace(websiteURL)
	if websiteURL == "" {
		return callify.Analysis{}, &callify.ValidationError{Title: "Missing required parameter", Message: "Website URL is required"}
	}
	if err := a.completer.Validate(); err != nil {
		return callify.Analysis{}, err
	}

	domain := ExtractDomain(websiteURL)
	logger := a.logger.With(zap.String("website_url", websiteURL), zap.String("domain", domain))

	pageText := a.fetchText(ctx, websiteURL, logger)

	system, user := buildPrompts(a.cfg.Persona, websiteURL, domain, pageText)
	content, err := a.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		return callify.Analysis{}, fmt.Errorf("complete analysis: %w", err)
	}

	var result callify.Analysis
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return callify.Analysis{}, &callify.ProviderError{Provider: "openai", Body: content, Err: fmt.Errorf("decode analysis: %w", err)}
	}

	rec := callify.AnalysisRecord{
		WebsiteURL:  websiteURL,
		Domain:      domain,
		Analysis:    result,
		SnapshotURI: a.snapshot(ctx, domain, pageText, logger),
	}
	if id, err := a.store.SaveAnalysis(ctx, rec); err != nil {
		logger.Warn("analysis not stored", zap.Error(err))
	} else {
		logger.Info("analysis stored", zap.String("analysis_id", id), zap.String("business_name", result.BusinessName))
	}
	return result, nil
}

func (a *Analyzer) fetchText(ctx context.Context, websiteURL string, logger *zap.Logger) string {
	if a.fetcher == nil {
		return ""
	}
	target := websiteURL
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()
	page, err := a.fetcher.FetchText(fetchCtx, target)
	if err != nil {
		logger.Warn("website fetch failed, analyzing domain only", zap.Error(err))
		return ""
	}
	logger.Debug("website fetched",
		zap.Int("status", page.StatusCode),
		zap.Int("chars", len(page.Text)),
		zap.Duration("duration", page.Duration),
	)
	return page.Text
}

func (a *Analyzer) snapshot(ctx context.Context, domain, pageText string, logger *zap.Logger) string {
	if a.blobs == nil || a.hasher == nil || pageText == "" {
		return ""
	}
	digest, err := a.hasher.Hash([]byte(pageText))
	if err != nil {
		logger.Warn("snapshot hash failed", zap.Error(err))
		return ""
	}
	objectPath := path.Join(a.cfg.SnapshotPrefix, domain, digest+".txt")
	uri, err := a.blobs.PutObject(ctx, objectPath, "text/plain; charset=utf-8", bytes.NewReader([]byte(pageText)))
	if err != nil {
		logger.Warn("snapshot upload failed", zap.Error(err))
		return ""
	}
	return uri
}
