// Package headless renders pages with a per-request headless Chrome driven by
// chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// ErrLaunch reports that the browser process could not be started.
var ErrLaunch = errors.New("browser launch failed")

// Config controls the behavior of the headless browser.
type Config struct {
	ExecPath          string
	UserAgent         string
	Headers           http.Header
	MaxParallel       int
	NavigationTimeout time.Duration
	Settle            time.Duration
	ScrollSteps       int
	ScrollDelay       time.Duration
	// BlockResources lists resource types (image, stylesheet, font, media,
	// ...) whose requests are failed before they leave the browser.
	BlockResources []string
}

// Launcher starts one browser per search request.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates cfg and returns a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("headless")}, nil
}

// Launch starts Chrome and waits for it to accept commands. The browser is
// also torn down when ctx ends.
func (l *Launcher) Launch(ctx context.Context) (product.Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("enable-automation", false),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	var limiter chan struct{}
	if l.cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, l.cfg.MaxParallel)
	}
	l.logger.Debug("browser launched")
	return &Session{
		cfg:           l.cfg,
		limiter:       limiter,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        l.logger,
	}, nil
}

// Session is one running browser. Each Fetch opens and closes its own tab.
type Session struct {
	cfg           Config
	limiter       chan struct{}
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger
	closeOnce     sync.Once
	closeErr      error
}

// Close shuts down every tab and the browser process. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// Fetch renders url in a new tab and returns the serialized DOM.
func (s *Session) Fetch(ctx context.Context, url string) (product.Page, error) {
	if err := s.acquire(ctx); err != nil {
		return product.Page{}, err
	}
	defer s.release()

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, func(ev any) {
		meta.captureEvent(ev)
		if paused, ok := ev.(*fetch.EventRequestPaused); ok {
			go func() {
				_ = chromedp.Run(tabCtx, fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient))
			}()
		}
	})

	start := time.Now()
	html, finalURL, err := s.render(tabCtx, url)
	if err != nil {
		metrics.ObserveFetch("render", "error", 0)
		return product.Page{}, err
	}
	metrics.ObserveFetch("render", "ok", len(html))

	status, _, _ := meta.snapshotWithFallbacks(url, finalURL)
	if finalURL == "" {
		finalURL = url
	}
	return product.Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       html,
		Rendered:   true,
		Duration:   time.Since(start),
	}, nil
}

func (s *Session) render(tabCtx context.Context, url string) (string, string, error) {
	if err := chromedp.Run(tabCtx, s.networkSetupAction()); err != nil {
		return "", "", fmt.Errorf("prepare tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(tabCtx, s.navTimeout())
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	cancel()
	if err != nil {
		return "", "", fmt.Errorf("navigate %s: %w", url, err)
	}

	var (
		html     string
		finalURL string
		scrolled bool
	)
	actions := []chromedp.Action{chromedp.Sleep(s.cfg.Settle)}
	for i := 0; i < s.cfg.ScrollSteps; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight); true`, &scrolled),
			chromedp.Sleep(s.cfg.ScrollDelay),
		)
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", "", fmt.Errorf("capture dom: %w", err)
	}
	return html, finalURL, nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(s.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(s.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if patterns := blockPatterns(s.cfg.BlockResources); len(patterns) > 0 {
			if err := fetch.Enable().WithPatterns(patterns).Do(ctx); err != nil {
				return fmt.Errorf("enable request interception: %w", err)
			}
		}
		return nil
	})
}

var resourceTypes = map[string]network.ResourceType{
	"image":      network.ResourceTypeImage,
	"stylesheet": network.ResourceTypeStylesheet,
	"font":       network.ResourceTypeFont,
	"media":      network.ResourceTypeMedia,
	"texttrack":  network.ResourceTypeTextTrack,
	"manifest":   network.ResourceTypeManifest,
	"ping":       network.ResourceTypePing,
}

// blockPatterns turns resource type names into interception patterns. Unknown
// names are ignored.
func blockPatterns(names []string) []*fetch.RequestPattern {
	var patterns []*fetch.RequestPattern
	for _, name := range names {
		rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: rt,
			RequestStage: fetch.RequestStageRequest,
		})
	}
	return patterns
}

func (s *Session) acquire(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	select {
	case s.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (s *Session) release() {
	if s.limiter == nil {
		return
	}
	select {
	case <-s.limiter:
	default:
	}
}

func (s *Session) navTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return 15 * time.Second
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Only the first document response is the main frame; later ones are iframes.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
