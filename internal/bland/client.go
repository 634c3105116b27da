// Package bland dispatches outbound AI voice calls through the Bland API.
//
// Each dispatch is a single POST and is never retried.
package bland

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

const (
	providerName   = "bland"
	defaultBaseURL = "https://api.bland.ai/v1"
	maxErrorBody   = 4 << 10
)

// callParameters are the fixed call-shaping settings sent with every dispatch.
var callParameters = []struct {
	path  string
	value any
}{
	{"voice", "June"},
	{"wait_for_greeting", false},
	{"record", true},
	{"answered_by_enabled", true},
	{"noise_cancellation", false},
	{"interruption_threshold", 100},
	{"block_interruptions", false},
	{"max_duration", 12},
	{"model", "base"},
	{"language", "en"},
	{"background_track", "none"},
	{"endpoint", "https://api.bland.ai"},
	{"voicemail_action", "hangup"},
	{"json_mode_enabled", false},
}

// Config controls the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Bland calls API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ callify.VoiceProvider = (*Client)(nil)

// New builds a Client. A missing API key is reported when a call is attempted.
func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

// Dispatch places one outbound call that speaks script to rawPhone.
func (c *Client) Dispatch(ctx context.Context, rawPhone, script string) (callify.CallResult, error) {
	if c.apiKey == "" {
		return callify.CallResult{}, &callify.ConfigurationError{Setting: "bland.api_key"}
	}

	payload, err := buildCallPayload(NormalizePhone(rawPhone), script)
	if err != nil {
		return callify.CallResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls", bytes.NewReader(payload))
	if err != nil {
		return callify.CallResult{}, fmt.Errorf("build bland request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return callify.CallResult{}, err
	}
	result := callify.CallResult{
		CallID: gjson.GetBytes(body, "call_id").String(),
		Status: gjson.GetBytes(body, "status").String(),
		Raw:    body,
	}
	c.logger.Info("call dispatched", zap.String("call_id", result.CallID), zap.String("status", result.Status))
	return result, nil
}

// CallStatus fetches the provider's current view of callID.
func (c *Client) CallStatus(ctx context.Context, callID string) (callify.CallStatus, error) {
	if c.apiKey == "" {
		return callify.CallStatus{}, &callify.ConfigurationError{Setting: "bland.api_key"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calls/"+url.PathEscape(callID), nil)
	if err != nil {
		return callify.CallStatus{}, fmt.Errorf("build bland request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return callify.CallStatus{}, err
	}
	status := gjson.GetBytes(body, "status").String()
	if status == "" {
		status = gjson.GetBytes(body, "queue_status").String()
	}
	return callify.CallStatus{CallID: callID, Status: status, Raw: body}, nil
}

func buildCallPayload(phone, script string) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	if payload, err = sjson.SetBytes(payload, "phone_number", phone); err != nil {
		return nil, fmt.Errorf("build bland payload: %w", err)
	}
	if payload, err = sjson.SetBytes(payload, "task", script); err != nil {
		return nil, fmt.Errorf("build bland payload: %w", err)
	}
	for _, p := range callParameters {
		if payload, err = sjson.SetBytes(payload, p.path, p.value); err != nil {
			return nil, fmt.Errorf("build bland payload %s: %w", p.path, err)
		}
	}
	return payload, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	body, err := c.roundTrip(req)
	telemetry.ObserveProviderRequest(providerName, err, time.Since(start))
	if err != nil {
		c.logger.Error("bland request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
	}
	return body, err
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &callify.ProviderError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &callify.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &callify.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
