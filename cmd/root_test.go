package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-search-crawler/internal/config"
	"github.com/JakeFAU/product-search-crawler/internal/pipeline"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
)

type fakeApp struct {
	keyword string
	ran     bool
	closed  bool
	err     error
	cfg     *config.Config
}

func (f *fakeApp) Run(context.Context) error {
	f.ran = true
	return f.err
}

func (f *fakeApp) Search(_ context.Context, keyword string, out stream.Emitter) (pipeline.Summary, error) {
	f.keyword = keyword
	if f.err != nil {
		_ = out.Emit(stream.ErrorEvent(f.err))
		return pipeline.Summary{}, f.err
	}
	_ = out.Emit(stream.StatusEvent("Found 0 sites to scan"))
	id := uuid.New()
	_ = out.Emit(stream.CompleteEvent(id.String(), keyword, nil))
	return pipeline.Summary{SearchID: id, Keyword: keyword}, nil
}

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return nil
}

// withFakeApp swaps the factory for the duration of a test. Tests using it
// cannot run in parallel.
func withFakeApp(t *testing.T, app *fakeApp) {
	t.Helper()
	prev := newApp
	newApp = func(_ context.Context, cfg *config.Config) (App, error) {
		app.cfg = cfg
		return app, nil
	}
	t.Cleanup(func() { newApp = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandPrintsJSONLines(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	out, err := execute(t, "search", "car", "stickers")
	require.NoError(t, err)
	require.Equal(t, "car stickers", app.keyword)
	require.True(t, app.closed)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, `{"type":"status","message":"Found 0 sites to scan"}`, lines[0])
	require.True(t, strings.HasPrefix(lines[1], `{"type":"complete"`))
}

func TestSearchCommandReturnsFailure(t *testing.T) {
	app := &fakeApp{err: errors.New("google API not configured")}
	withFakeApp(t, app)

	out, err := execute(t, "search", "mugs")
	require.ErrorContains(t, err, "google API not configured")
	require.Contains(t, out, `{"type":"error","error":"google API not configured"}`)
	require.True(t, app.closed)
}

func TestSearchCommandRequiresKeyword(t *testing.T) {
	withFakeApp(t, &fakeApp{})

	_, err := execute(t, "search")
	require.Error(t, err)
}

func TestServeCommandRunsApp(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, err := execute(t, "serve")
	require.NoError(t, err)
	require.True(t, app.ran)
}

func TestConfigFlagIsLoaded(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\npipeline:\n  concurrency: 5\n"), 0o600))

	_, err := execute(t, "--config", path, "serve")
	require.NoError(t, err)
	require.Equal(t, 9191, app.cfg.Server.Port)
	require.Equal(t, 5, app.cfg.Pipeline.Concurrency)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, loadEnvFile(""))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PRODUCT_SEARCH_TEST_ONLY_VAR=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PRODUCT_SEARCH_TEST_ONLY_VAR") })
	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "hello", os.Getenv("PRODUCT_SEARCH_TEST_ONLY_VAR"))
}
