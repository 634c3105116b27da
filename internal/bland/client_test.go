package bland

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

func TestDispatchPostsCanonicalPayload(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/calls", r.URL.Path)
		assert.Equal(t, "bland-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "+15551234567", gjson.GetBytes(body, "phone_number").String())
		assert.Equal(t, "Hello Jane", gjson.GetBytes(body, "task").String())
		assert.Equal(t, "June", gjson.GetBytes(body, "voice").String())
		assert.Equal(t, int64(12), gjson.GetBytes(body, "max_duration").Int())
		assert.Equal(t, int64(100), gjson.GetBytes(body, "interruption_threshold").Int())
		assert.True(t, gjson.GetBytes(body, "record").Bool())
		assert.True(t, gjson.GetBytes(body, "answered_by_enabled").Bool())
		assert.False(t, gjson.GetBytes(body, "wait_for_greeting").Bool())
		assert.Equal(t, "hangup", gjson.GetBytes(body, "voicemail_action").String())
		assert.Equal(t, "base", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "en", gjson.GetBytes(body, "language").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","call_id":"call-123"}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "bland-key", BaseURL: srv.URL + "/v1"}, nil)
	res, err := client.Dispatch(context.Background(), "+1 (555) 123-4567", "Hello Jane")
	require.NoError(t, err)
	require.Equal(t, "call-123", res.CallID)
	require.Equal(t, "success", res.Status)
	require.JSONEq(t, `{"status":"success","call_id":"call-123"}`, string(res.Raw))
	require.Equal(t, int32(1), hits.Load())
}

func TestDispatchWithoutKeyMakesNoRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	_, err := client.Dispatch(context.Background(), "5551234567", "hi")

	var cfgErr *callify.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "bland.api_key", cfgErr.Setting)
	require.Zero(t, hits.Load())

	_, err = client.CallStatus(context.Background(), "call-1")
	require.ErrorAs(t, err, &cfgErr)
	require.Zero(t, hits.Load())
}

func TestDispatchProviderErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := client.Dispatch(context.Background(), "5551234567", "hi")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusBadGateway, perr.StatusCode)
	require.Contains(t, perr.Body, "upstream down")
	require.Equal(t, int32(1), hits.Load())
}

func TestDispatchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := New(Config{APIKey: "k", BaseURL: baseURL}, nil)
	_, err := client.Dispatch(context.Background(), "5551234567", "hi")

	var perr *callify.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Zero(t, perr.StatusCode)
	require.Error(t, perr.Unwrap())
}

func TestCallStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calls/call-9", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"call_id":"call-9","queue_status":"complete","completed":true}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	status, err := client.CallStatus(context.Background(), "call-9")
	require.NoError(t, err)
	require.Equal(t, "call-9", status.CallID)
	require.Equal(t, "complete", status.Status)
}
