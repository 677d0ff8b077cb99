package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := Open(context.Background(), Config{Bucket: "snapshots"},
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	type upload struct{ path, name, body string }
	seen := make(chan upload, 1)
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		select {
		case seen <- upload{path: r.URL.Path, name: r.URL.Query().Get("name"), body: string(body)}:
		default:
		}
		fmt.Fprintln(w, `{"name":"search/abc.html","bucket":"snapshots"}`)
	}))

	uri, err := store.PutObject(context.Background(), "/search/abc.html", "text/html", strings.NewReader("<html>sticker</html>"))
	require.NoError(t, err)
	require.Equal(t, "gs://snapshots/search/abc.html", uri)
	got := <-seen
	require.Contains(t, got.path, "/b/snapshots/o")
	require.Equal(t, "search/abc.html", got.name)
	require.Contains(t, got.body, "<html>sticker</html>")
	require.Contains(t, got.body, "text/html")
}

func TestPutObjectSurfacesErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := store.PutObject(context.Background(), "search/abc.html", "text/html", strings.NewReader("x"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = Open(context.Background(), Config{}, option.WithoutAuthentication())
	require.ErrorContains(t, err, "bucket")

	store := newTestStore(t, http.NotFoundHandler())
	_, err = store.PutObject(context.Background(), "  ", "text/html", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")

	var nilStore *BlobStore
	require.NoError(t, nilStore.Close())
}
