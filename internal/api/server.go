package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/contact"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

const defaultRequestTimeout = 60 * time.Second

// CallService places calls and reports their status.
type CallService interface {
	PlaceCall(ctx context.Context, req callify.CallRequest, clientAddr string) (callify.CallResult, error)
	CallStatus(ctx context.Context, callID string) (callify.CallStatus, error)
}

// WebsiteAnalyzer produces an analysis for a website.
type WebsiteAnalyzer interface {
	Analyze(ctx context.Context, websiteURL string) (callify.Analysis, error)
}

// ContactService relays contact-form submissions.
type ContactService interface {
	Submit(ctx context.Context, req contact.Request, clientAddr string) (string, error)
}

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the services behind the routes.
type Deps struct {
	Calls    CallService
	Analyzer WebsiteAnalyzer
	Contact  ContactService
	// Ready maps dependency names to checks run by /readyz.
	Ready map[string]ReadinessCheck
}

// Config controls middleware.
type Config struct {
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	// TrustProxyHeaders keys callers on X-Forwarded-For instead of the socket
	// peer. Enable it only behind a proxy that appends the client address.
	TrustProxyHeaders bool
	// ProxyHops is the number of trusted proxies appending to X-Forwarded-For.
	ProxyHops int
}

// Server wires HTTP handlers to the call pipeline and supporting services.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg Config, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ProxyHops <= 0 {
		cfg.ProxyHops = 1
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logging.OrNop(logger),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(clientIdentityMiddleware(cfg.TrustProxyHeaders, cfg.ProxyHops))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Post("/call", s.placeCall)
		r.Get("/call/{callId}", s.callStatus)
		r.Post("/website-analysis", s.analyzeWebsite)
		r.Post("/contact", s.submitContact)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.deps.Ready {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
