package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func openTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := Open(context.Background(), Config{Bucket: "harvest-artifacts"},
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObjectUploadsArtifact(t *testing.T) {
	var uploads atomic.Int32
	router := chi.NewRouter()
	router.Post("/upload/storage/v1/b/{bucket}/o", func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		assert.Equal(t, "harvest-artifacts", chi.URLParam(r, "bucket"))
		assert.Equal(t, "runs/courthouses.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `[{"city":"Ottawa"}]`)
		assert.Contains(t, string(body), "application/json")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"bucket":"harvest-artifacts","name":"runs/courthouses.json"}`)
	})
	store := openTestStore(t, router)

	uri, err := store.PutObject(context.Background(), "runs/courthouses.json", "application/json",
		strings.NewReader(`[{"city":"Ottawa"}]`))
	require.NoError(t, err)
	require.Equal(t, "gs://harvest-artifacts/runs/courthouses.json", uri)
	require.Equal(t, int32(1), uploads.Load())
}

func TestPutObjectServerError(t *testing.T) {
	store := openTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "courthouses.json", "application/json", strings.NewReader("[]"))
	require.ErrorContains(t, err, "close writer")
}

func TestPutObjectRequiresPath(t *testing.T) {
	store := openTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), "", "", strings.NewReader("[]"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client is required")

	_, err = Open(context.Background(), Config{})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestCloseWithBorrowedClient(t *testing.T) {
	store := &BlobStore{}
	require.NoError(t, store.Close())
}
