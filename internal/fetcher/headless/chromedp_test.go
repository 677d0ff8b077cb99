package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewLauncherValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLauncher(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	l, err := NewLauncher(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, l.cfg.NavigationTimeout)
}

func TestLaunchMissingBinary(t *testing.T) {
	t.Parallel()

	l, err := NewLauncher(Config{ExecPath: "/nonexistent/chrome-for-tests"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = l.Launch(ctx)
	require.ErrorIs(t, err, ErrLaunch)
}

func TestSessionNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	s := &Session{}
	require.Equal(t, 15*time.Second, s.navTimeout())
	s.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, s.navTimeout())
}

func TestSessionLimiter(t *testing.T) {
	t.Parallel()

	s := &Session{limiter: make(chan struct{}, 1)}
	require.NoError(t, s.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.acquire(ctx))

	s.release()
	require.NoError(t, s.acquire(context.Background()))
}

func TestBlockPatterns(t *testing.T) {
	t.Parallel()

	patterns := blockPatterns([]string{"image", " Stylesheet ", "font", "media", "hologram"})
	require.Len(t, patterns, 4)
	require.Equal(t, network.ResourceTypeImage, patterns[0].ResourceType)
	require.Equal(t, network.ResourceTypeStylesheet, patterns[1].ResourceType)
	require.Equal(t, "*", patterns[0].URLPattern)
	require.Equal(t, fetch.RequestStageRequest, patterns[0].RequestStage)
	require.Empty(t, blockPatterns(nil))
}

func TestCloneHeaderAndNetworkHeaders(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}, "Accept-Language": {"en-AU"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	require.Len(t, src["X-Test"], 2)

	netHeaders := toNetworkHeaders(src)
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "en-AU", netHeaders["Accept-Language"])
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  404,
			URL:     "https://shop.example/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	// Later documents belong to iframes.
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://ads.example/frame"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 500, URL: "https://shop.example/i.png"},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 404, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://shop.example/rendered", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
}
