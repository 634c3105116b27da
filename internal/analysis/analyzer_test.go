package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/callify-backend/internal/callify"
	collyfetcher "github.com/JakeFAU/callify-backend/internal/fetcher/colly"
	"github.com/JakeFAU/callify-backend/internal/hash/sha256"
	"github.com/JakeFAU/callify-backend/internal/storage/memory"
)

type fakeCompleter struct {
	mu          sync.Mutex
	validateErr error
	content     string
	err         error
	system      string
	user        string
	calls       int
}

func (c *fakeCompleter) Validate() error { return c.validateErr }

func (c *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.system, c.user = system, user
	return c.content, c.err
}

type fakeFetcher struct {
	page collyfetcher.Page
	err  error
	urls []string
}

func (f *fakeFetcher) FetchText(_ context.Context, url string) (collyfetcher.Page, error) {
	f.urls = append(f.urls, url)
	return f.page, f.err
}

const acmeJSON = `{"businessName":"Acme Plumbing","industry":"Home services","services":["Repairs","Installs"],"summary":"Acme fixes pipes.","callScript":"Hello {{name}} at {{businessName}}","questions":["Do you need leads?"]}`

func TestAnalyzeStoresAnalysisAndSnapshot(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	blobs := memory.NewBlobStore()
	completer := &fakeCompleter{content: acmeJSON}
	fetcher := &fakeFetcher{page: collyfetcher.Page{StatusCode: 200, Text: "Acme Plumbing. 24/7 repairs."}}
	analyzer := NewAnalyzer(AnalyzerConfig{Persona: "Janie"}, completer, fetcher, blobs, sha256.New(), store, nil)

	got, err := analyzer.Analyze(context.Background(), "www.acme.com/contact")
	require.NoError(t, err)
	require.Equal(t, "Acme Plumbing", got.BusinessName)
	require.Equal(t, []string{"Repairs", "Installs"}, got.Services)

	require.Equal(t, []string{"https://www.acme.com/contact"}, fetcher.urls)
	require.Contains(t, completer.system, "Janie")
	require.Contains(t, completer.user, "(domain: acme.com)")
	require.Contains(t, completer.user, "24/7 repairs")

	rec, err := store.LatestAnalysis(context.Background(), "www.acme.com/contact")
	require.NoError(t, err)
	require.Equal(t, "acme.com", rec.Domain)
	require.Equal(t, "Acme Plumbing", rec.Analysis.BusinessName)
	require.True(t, strings.HasPrefix(rec.SnapshotURI, "memory://snapshots/acme.com/"))

	digest, err := sha256.New().Hash([]byte("Acme Plumbing. 24/7 repairs."))
	require.NoError(t, err)
	body, ok := blobs.Object("snapshots/acme.com/" + digest + ".txt")
	require.True(t, ok)
	require.Equal(t, "Acme Plumbing. 24/7 repairs.", string(body))
}

func TestAnalyzeFetchFailureStillAnalyzes(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	completer := &fakeCompleter{content: acmeJSON}
	fetcher := &fakeFetcher{err: errors.New("dial tcp: no such host")}
	analyzer := NewAnalyzer(AnalyzerConfig{}, completer, fetcher, memory.NewBlobStore(), sha256.New(), store, nil)

	_, err := analyzer.Analyze(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.NotContains(t, completer.user, "home page")

	rec, err := store.LatestAnalysis(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.Empty(t, rec.SnapshotURI)
}

func TestAnalyzeRequiresURL(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{content: acmeJSON}
	_, err := NewAnalyzer(AnalyzerConfig{}, completer, nil, nil, nil, newMemoryStore(), nil).Analyze(context.Background(), "  ")

	var vErr *callify.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Zero(t, completer.calls)
}

func TestAnalyzeMissingKeyFetchesNothing(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{validateErr: &callify.ConfigurationError{Setting: "openai.api_key"}}
	fetcher := &fakeFetcher{}
	_, err := NewAnalyzer(AnalyzerConfig{}, completer, fetcher, nil, nil, newMemoryStore(), nil).Analyze(context.Background(), "https://acme.com")

	var cfgErr *callify.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Empty(t, fetcher.urls)
	require.Zero(t, completer.calls)
}

func TestAnalyzeUndecodableContent(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	completer := &fakeCompleter{content: "not json"}
	_, err := NewAnalyzer(AnalyzerConfig{}, completer, nil, nil, nil, store, nil).Analyze(context.Background(), "https://acme.com")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "openai", perr.Provider)

	_, err = store.LatestAnalysis(context.Background(), "https://acme.com")
	require.ErrorIs(t, err, callify.ErrNotFound)
}

func TestAnalyzeProviderErrorPassesThrough(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{err: &callify.ProviderError{Provider: "openai", StatusCode: 500}}
	_, err := NewAnalyzer(AnalyzerConfig{}, completer, nil, nil, nil, newMemoryStore(), nil).Analyze(context.Background(), "https://acme.com")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 500, perr.StatusCode)
}
