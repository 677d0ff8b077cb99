// Package worker scans the sites of one search: fetch, snapshot, extract,
// filter and dedup, streaming results as they appear.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/progress"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
)

// Config controls Worker behavior.
type Config struct {
	// SiteTimeout bounds fetch plus extraction for one site.
	SiteTimeout time.Duration
	// SnapshotPrefix is prepended to snapshot paths.
	SnapshotPrefix string
	// ContentType is stored with each snapshot.
	ContentType string
}

// Waiter throttles requests per host.
type Waiter interface {
	WaitURL(ctx context.Context, rawURL string) error
}

// Deps are the collaborators shared by every search. Probe, Detector,
// Snapshots, Limiter and Events may be nil.
type Deps struct {
	Probe     product.Fetcher
	Detector  product.RenderDetector
	Extractor product.Extractor
	Snapshots product.BlobStore
	Hasher    product.Hasher
	Limiter   Waiter
	Events    progress.Emitter
	Clock     product.Clock
}

// Search is the state the workers of one request share.
type Search struct {
	ID      uuid.UUID
	Keyword string
	// Browser renders pages for this request only.
	Browser product.Fetcher
	Matcher *rank.Matcher
	Dedup   *rank.Deduper
	Stream  stream.Emitter

	processed atomic.Int64
}

// Processed reports how many sites have finished.
func (s *Search) Processed() int {
	return int(s.processed.Load())
}

// Worker consumes site tasks from a queue.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SiteTimeout <= 0 {
		cfg.SiteTimeout = 45 * time.Second
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run consumes tasks until the queue is closed and drained or ctx ends.
func (w *Worker) Run(ctx context.Context, search *Search, queue product.Queue) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	for {
		task, err := queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, product.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.Process(ctx, search, task)
	}
}

// result describes one finished site.
type result struct {
	page    product.Page
	found   int
	fresh   int
	outcome progress.Outcome
	err     error
}

// Process scans one site. Failures are logged and reported, never returned.
// Stream events name the result URL; logs and progress events use its host.
func (w *Worker) Process(ctx context.Context, search *Search, task product.SiteTask) {
	site := product.Host(task.URL)
	if site == "" {
		site = task.URL
	}
	w.emit(search, stream.ProcessingEvent(task.URL, task.Index, task.Total))
	start := w.deps.Clock.Now()

	siteCtx, cancel := context.WithTimeout(ctx, w.cfg.SiteTimeout)
	res := w.scan(siteCtx, search, task)
	cancel()

	elapsed := w.deps.Clock.Now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	processed := int(search.processed.Add(1))
	w.emit(search, stream.ProgressEvent(task.URL, string(res.outcome), processed, task.Total))

	evt := progress.Event{
		SearchID:    progress.UUIDToBytes(search.ID),
		TS:          w.deps.Clock.Now(),
		Stage:       progress.StageSiteDone,
		Site:        site,
		URL:         task.URL,
		Outcome:     res.outcome,
		StatusClass: progress.ClassifyStatus(res.page.StatusCode),
		Rendered:    res.page.Rendered,
		Products:    int64(res.fresh),
		Dur:         elapsed,
	}
	fields := []zap.Field{
		zap.Stringer("search_id", search.ID),
		zap.String("site", site),
		zap.String("outcome", string(res.outcome)),
		zap.Int("found", res.found),
		zap.Int("new", res.fresh),
		zap.Bool("rendered", res.page.Rendered),
		zap.Duration("dur", elapsed),
	}
	if res.err != nil {
		evt.Note = truncate(res.err.Error(), 200)
		w.logger.Warn("site scan failed", append(fields, zap.Error(res.err))...)
	} else {
		w.logger.Info("site scanned", fields...)
	}
	w.deps.Events.Emit(evt)
}

func (w *Worker) scan(ctx context.Context, search *Search, task product.SiteTask) result {
	if w.deps.Limiter != nil {
		if err := w.deps.Limiter.WaitURL(ctx, task.URL); err != nil {
			return result{outcome: progress.OutcomeFailed, err: fmt.Errorf("rate limit: %w", err)}
		}
	}
	page, err := w.fetch(ctx, search, task.URL)
	if err != nil {
		return result{outcome: progress.OutcomeFailed, err: err}
	}
	w.snapshot(ctx, search.ID, page)

	if w.deps.Extractor == nil {
		return result{page: page, outcome: progress.OutcomeEmpty}
	}
	products, err := w.deps.Extractor.Extract(ctx, page, search.Keyword)
	if err != nil {
		return result{page: page, outcome: progress.OutcomeFailed, err: fmt.Errorf("extract: %w", err)}
	}
	if search.Matcher != nil {
		products = search.Matcher.Filter(products)
	}
	fresh := products
	total := len(products)
	if search.Dedup != nil {
		fresh, total = search.Dedup.Add(products)
	}
	res := result{page: page, found: len(products), fresh: len(fresh), outcome: progress.OutcomeEmpty}
	if len(fresh) > 0 {
		res.outcome = progress.OutcomeProducts
		w.emit(search, stream.ProductsEvent(task.URL, fresh, total))
	}
	return res
}

// fetch tries the plain HTTP probe first when configured and renders with the
// browser when the detector asks for it. A good probe page is kept when the
// browser fails.
func (w *Worker) fetch(ctx context.Context, search *Search, url string) (product.Page, error) {
	var (
		probed   product.Page
		probeErr error
		haveProb bool
	)
	if w.deps.Probe != nil {
		probed, probeErr = w.deps.Probe.Fetch(ctx, url)
		if probeErr == nil {
			haveProb = true
			if w.deps.Detector == nil || !w.deps.Detector.ShouldPromote(probed) {
				return probed, nil
			}
			w.logger.Debug("promoting to browser", zap.String("url", url), zap.Int("status", probed.StatusCode))
		} else {
			w.logger.Debug("probe fetch failed", zap.String("url", url), zap.Error(probeErr))
		}
	}
	if search.Browser == nil {
		if haveProb {
			return probed, nil
		}
		if probeErr != nil {
			return product.Page{}, fmt.Errorf("probe fetch: %w", probeErr)
		}
		return product.Page{}, errors.New("no fetcher configured")
	}
	rendered, err := search.Browser.Fetch(ctx, url)
	if err != nil {
		if haveProb && probed.StatusCode == http.StatusOK && strings.TrimSpace(probed.HTML) != "" {
			w.logger.Debug("render failed, using probe page", zap.String("url", url), zap.Error(err))
			return probed, nil
		}
		return product.Page{}, fmt.Errorf("render: %w", err)
	}
	return rendered, nil
}

func (w *Worker) snapshot(ctx context.Context, searchID uuid.UUID, page product.Page) {
	if w.deps.Snapshots == nil || w.deps.Hasher == nil || page.HTML == "" {
		return
	}
	path := w.buildSnapshotPath(searchID, w.deps.Hasher.Hash([]byte(page.HTML)))
	uri, err := w.deps.Snapshots.PutObject(ctx, path, w.cfg.ContentType, strings.NewReader(page.HTML))
	if err != nil {
		w.logger.Warn("snapshot upload failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	w.logger.Debug("snapshot stored", zap.String("url", page.URL), zap.String("uri", uri))
}

func (w *Worker) buildSnapshotPath(searchID uuid.UUID, hash string) string {
	prefix := strings.Trim(w.cfg.SnapshotPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", searchID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, searchID, hash)
}

func (w *Worker) emit(search *Search, evt stream.Event) {
	if search.Stream == nil {
		return
	}
	if err := search.Stream.Emit(evt); err != nil {
		w.logger.Debug("stream emit failed", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
