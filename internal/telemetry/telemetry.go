// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes recorded by ObserveCall.
const (
	CallDispatched  = "dispatched"
	CallRejected    = "rejected"
	CallRateLimited = "rate_limited"
	CallFailed      = "failed"
)

// Quota decisions recorded by ObserveQuotaDecision.
const (
	QuotaAllowed  = "allowed"
	QuotaDenied   = "denied"
	QuotaFailOpen = "fail_open"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callify_calls_total",
			Help: "Total number of call requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	quotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callify_quota_decisions_total",
			Help: "Total number of quota gate decisions, labeled by decision.",
		},
		[]string{"decision"},
	)

	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callify_provider_requests_total",
			Help: "Total number of upstream provider requests, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	providerRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callify_provider_request_duration_seconds",
			Help:    "Histogram of upstream provider latencies, labeled by provider.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	retentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callify_retention_deleted_total",
			Help: "Total number of records removed by retention, labeled by collection.",
		},
		[]string{"collection"},
	)

	fetchDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callify_fetch_rate_limit_delay_seconds",
			Help:    "Histogram of per-domain pacing delays before website fetches.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCall records the final outcome of a call request.
func ObserveCall(outcome string) {
	callsTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuotaDecision records one quota gate decision.
func ObserveQuotaDecision(decision string) {
	quotaDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveProviderRequest records one upstream request and its latency.
func ObserveProviderRequest(provider string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
	providerRequestDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRetention records records removed from a collection.
func ObserveRetention(collection string, deleted int) {
	if deleted > 0 {
		retentionDeletedTotal.WithLabelValues(collection).Add(float64(deleted))
	}
}

// ObserveFetchDelay records the pacing delay applied before a website fetch.
func ObserveFetchDelay(domain string, duration time.Duration) {
	fetchDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
