package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

func TestCompleteJSONSendsChatCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "gpt-4o", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "json_object", gjson.GetBytes(body, "response_format.type").String())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "be terse", gjson.GetBytes(body, "messages.0.content").String())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.1.role").String())
		assert.Equal(t, `say "hi"`, gjson.GetBytes(body, "messages.1.content").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"businessName\":\"Acme\"}"}}]}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	content, err := client.CompleteJSON(context.Background(), "be terse", `say "hi"`)
	require.NoError(t, err)
	require.JSONEq(t, `{"businessName":"Acme"}`, content)
}

func TestCompleteJSONMissingKeyMakesNoRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.CompleteJSON(context.Background(), "s", "u")

	var cfgErr *callify.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "openai.api_key", cfgErr.Setting)
	require.Zero(t, hits.Load())
}

func TestCompleteJSONUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := client.CompleteJSON(context.Background(), "s", "u")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	require.Contains(t, perr.Body, "quota")
}

func TestCompleteJSONEmptyContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := client.CompleteJSON(context.Background(), "s", "u")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
}
