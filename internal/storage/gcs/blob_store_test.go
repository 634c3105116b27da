package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func dialTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := Dial(context.Background(), Config{Bucket: "snapshots-bucket"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	objectName := "snapshots/acme.com/abc.txt"
	store := dialTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/snapshots-bucket/o")
		assert.Equal(t, objectName, r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "Acme Plumbing")
		assert.Contains(t, string(body), "text/plain")
		fmt.Fprintln(w, `{"name":"`+objectName+`","bucket":"snapshots-bucket"}`)
	}))

	uri, err := store.PutObject(context.Background(), objectName, "text/plain", bytes.NewReader([]byte("Acme Plumbing")))
	require.NoError(t, err)
	require.Equal(t, "gs://snapshots-bucket/"+objectName, uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := dialTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := store.PutObject(context.Background(), "snapshots/x.txt", "text/plain", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := dialTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.EqualError(t, err, "path is required")
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = Dial(context.Background(), Config{}, option.WithoutAuthentication())
	require.EqualError(t, err, "bucket name is required")
}
