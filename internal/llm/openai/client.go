// Package openai is a minimal chat-completions client for JSON-mode prompts.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	maxErrorBody   = 4 << 10
)

// Config controls the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client sends chat-completion requests.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// New builds a Client. A missing API key is reported when a request is made.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Validate reports a ConfigurationError when no API key is set.
func (c *Client) Validate() error {
	if c.apiKey == "" {
		return &callify.ConfigurationError{Setting: "openai.api_key"}
	}
	return nil
}

// CompleteJSON sends a system and user message with JSON response format and
// returns the assistant message content.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	payload, err := c.buildPayload(system, user)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	content, err := c.do(req)
	telemetry.ObserveProviderRequest(providerName, err, time.Since(start))
	return content, err
}

func (c *Client) buildPayload(system, user string) ([]byte, error) {
	payload := []byte(`{"messages":[]}`)
	var err error
	for _, set := range []struct {
		path  string
		value any
	}{
		{"model", c.model},
		{"messages.-1", map[string]string{"role": "system", "content": system}},
		{"messages.-1", map[string]string{"role": "user", "content": user}},
		{"response_format.type", "json_object"},
	} {
		payload, err = sjson.SetBytes(payload, set.path, set.value)
		if err != nil {
			return nil, fmt.Errorf("build openai payload %s: %w", set.path, err)
		}
	}
	return payload, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &callify.ProviderError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &callify.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &callify.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return "", &callify.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       truncate(body),
			Err:        fmt.Errorf("response has no message content"),
		}
	}
	return content.String(), nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
