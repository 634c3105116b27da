// Package collyfetcher fetches the visible text of a business website using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxChars caps the extracted text in runes; zero keeps everything.
	MaxChars int
}

// Pacer delays requests to the same host.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Page is the text extracted from one fetched document.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Text       string
	Duration   time.Duration
}

// Fetcher loads single pages with a cloned Colly collector per call.
type Fetcher struct {
	cfg           Config
	pacer         Pacer
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. pacer may be nil.
func New(cfg Config, pacer Pacer) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		pacer:         pacer,
		baseCollector: c,
	}
}

// FetchText GETs rawURL and returns its title and whitespace-collapsed body text.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (Page, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx, rawURL); err != nil {
			return Page{}, fmt.Errorf("pace fetch: %w", err)
		}
	}

	var (
		page     Page
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, &page, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return Page{}, err
	}
	page.Duration = time.Since(start)
	page.Text = truncateRunes(page.Text, f.cfg.MaxChars)
	return page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, page *Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		page.URL = r.Request.URL.String()
		page.StatusCode = r.StatusCode
	})

	hooks.OnHTML("title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = collapseSpace(e.Text)
		}
	})

	hooks.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, noscript, svg").Remove()
		page.Text = collapseSpace(e.DOM.Text())
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
