package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/contact"
)

const maxBodyBytes = 1 << 20

type callResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	CallID  string `json:"callId"`
	Status  string `json:"status"`
}

type analysisRequest struct {
	WebsiteURL string `json:"websiteUrl"`
}

type analysisResponse struct {
	Success    bool             `json:"success"`
	WebsiteURL string           `json:"websiteUrl"`
	Analysis   callify.Analysis `json:"analysis"`
}

type contactResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type rateLimitResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Limit    int    `json:"limit"`
	Current  int    `json:"current"`
	ResetsAt string `json:"resetsAt"`
}

func (s *Server) placeCall(w http.ResponseWriter, r *http.Request) {
	var req callify.CallRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.Calls.PlaceCall(r.Context(), req, clientIdentity(r))
	if err != nil {
		s.writeDomainError(w, r, "Call failed", err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{
		Success: true,
		Message: "Call initiated successfully",
		CallID:  result.CallID,
		Status:  result.Status,
	})
}

func (s *Server) callStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.deps.Calls.CallStatus(r.Context(), chi.URLParam(r, "callId"))
	if err != nil {
		s.writeDomainError(w, r, "Status check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Success: true, CallID: status.CallID, Status: status.Status})
}

func (s *Server) analyzeWebsite(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if !s.decode(w, r, &req) {
		return
	}

	analysis, err := s.deps.Analyzer.Analyze(r.Context(), req.WebsiteURL)
	if err != nil {
		s.writeDomainError(w, r, "Analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		Success:    true,
		WebsiteURL: strings.TrimSpace(req.WebsiteURL),
		Analysis:   analysis,
	})
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	var req contact.Request
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.deps.Contact.Submit(r.Context(), req, clientIdentity(r))
	if err != nil {
		s.writeDomainError(w, r, "Submission failed", err)
		return
	}
	writeJSON(w, http.StatusOK, contactResponse{
		Success:      true,
		Message:      "Contact form submitted successfully",
		SubmissionID: id,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", fmt.Sprintf("request body must be a JSON object: %v", err))
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy to a status code and body. failure
// titles the 500 response for the route.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, failure string, err error) {
	var (
		vErr  *callify.ValidationError
		rlErr *callify.RateLimitError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Title, vErr.Message)
	case errors.As(err, &rlErr):
		writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
			Error:    "Rate limit exceeded",
			Message:  fmt.Sprintf("Limited to %d calls per day. Please try again tomorrow.", rlErr.Limit),
			Limit:    rlErr.Limit,
			Current:  rlErr.Current,
			ResetsAt: rlErr.ResetsAt.UTC().Format(time.RFC3339),
		})
	default:
		s.logger.Error(strings.ToLower(failure),
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, failure, publicMessage(err))
	}
}

// publicMessage describes err without leaking provider bodies.
func publicMessage(err error) string {
	var (
		cfgErr   *callify.ConfigurationError
		provErr  *callify.ProviderError
		storeErr *callify.StorageError
	)
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	case errors.As(err, &provErr):
		if provErr.StatusCode != 0 {
			return fmt.Sprintf("%s returned status %d", provErr.Provider, provErr.StatusCode)
		}
		return fmt.Sprintf("%s request failed", provErr.Provider)
	case errors.As(err, &storeErr):
		return fmt.Sprintf("storage %s failed", storeErr.Op)
	default:
		return "internal server error"
	}
}

// clientIdentity is the address resolved by clientIdentityMiddleware, or the
// socket peer without its port.
func clientIdentity(r *http.Request) string {
	if id, ok := r.Context().Value(clientKey{}).(string); ok && id != "" {
		return id
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

// forwardedClient picks the X-Forwarded-For entry appended by the outermost
// of hops trusted proxies. Entries to its left are client supplied and ignored.
func forwardedClient(values []string, hops int) string {
	var entries []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}
	if len(entries) == 0 {
		return ""
	}
	idx := len(entries) - hops
	if idx < 0 {
		idx = 0
	}
	candidate := entries[idx]
	if net.ParseIP(candidate) == nil {
		return ""
	}
	return candidate
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, errorResponse{Error: title, Message: message})
}
