// Package pipeline runs one keyword search end to end: search, render and
// extract every result site through the worker pool, rank, and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/dispatcher"
	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/progress"
	queuemem "github.com/JakeFAU/product-search-crawler/internal/queue/memory"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
	"github.com/JakeFAU/product-search-crawler/internal/worker"
)

// ErrEmptyKeyword rejects blank searches.
var ErrEmptyKeyword = errors.New("keyword is required")

// Deps are the collaborators of a Runner. Launcher, Publisher and Events may
// be nil.
type Deps struct {
	Searcher   product.Searcher
	Launcher   product.BrowserLauncher
	Dispatcher *dispatcher.Dispatcher
	Publisher  product.Publisher
	Events     progress.Emitter
	IDs        product.IDGenerator
	Clock      product.Clock
}

// Config tunes a Runner.
type Config struct {
	Ranking rank.Config
	// Timeout bounds a whole search; zero means no limit.
	Timeout time.Duration
}

// Summary describes a finished search.
type Summary struct {
	SearchID   uuid.UUID         `json:"search_id"`
	Keyword    string            `json:"keyword"`
	Sites      int               `json:"sites"`
	Products   []product.Product `json:"products"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	// TimedOut is set when Timeout cut the scan short.
	TimedOut bool `json:"timed_out"`
}

// Runner executes searches. It holds no per-request state and is safe for
// concurrent use.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Runner, error) {
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("id generator is required")
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run performs one search, streaming events to out. It always ends the
// stream with a complete or an error event unless keyword is blank. The
// returned error is non-nil only for fatal failures.
func (r *Runner) Run(ctx context.Context, keyword string, out stream.Emitter) (Summary, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Summary{}, ErrEmptyKeyword
	}
	id, err := r.deps.IDs.NewSearchID()
	if err != nil {
		return Summary{}, fmt.Errorf("new search id: %w", err)
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	sum := Summary{SearchID: id, Keyword: keyword, StartedAt: r.deps.Clock.Now(), Products: []product.Product{}}
	logger := r.logger.With(zap.Stringer("search_id", id), zap.String("keyword", keyword))
	r.emitProgress(progress.Event{SearchID: progress.UUIDToBytes(id), Stage: progress.StageSearchStart, Keyword: keyword})
	emit(out, stream.StatusEvent(fmt.Sprintf("Searching for \"%s\"...", keyword)))

	urls, err := r.deps.Searcher.Search(ctx, keyword)
	if err != nil {
		return r.fail(sum, out, logger, err)
	}
	sum.Sites = len(urls)
	emit(out, stream.StatusEvent(fmt.Sprintf("Found %d sites to scan", len(urls))))
	logger.Info("search results", zap.Int("sites", len(urls)))

	if len(urls) > 0 {
		if err := r.scan(ctx, id, keyword, urls, out, &sum, logger); err != nil {
			return r.fail(sum, out, logger, err)
		}
	}

	sum.FinishedAt = r.deps.Clock.Now()
	emit(out, stream.CompleteEvent(id.String(), keyword, sum.Products))
	r.emitProgress(progress.Event{
		SearchID: progress.UUIDToBytes(id),
		Stage:    progress.StageSearchDone,
		Sites:    int64(sum.Sites),
		Products: int64(len(sum.Products)),
		Dur:      sum.FinishedAt.Sub(sum.StartedAt),
	})
	r.publish(ctx, sum, logger)
	logger.Info("search complete",
		zap.Int("products", len(sum.Products)),
		zap.Bool("timed_out", sum.TimedOut),
		zap.Duration("dur", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (r *Runner) scan(
	ctx context.Context,
	id uuid.UUID,
	keyword string,
	urls []string,
	out stream.Emitter,
	sum *Summary,
	logger *zap.Logger,
) error {
	search := &worker.Search{
		ID:      id,
		Keyword: keyword,
		Matcher: rank.NewMatcher(keyword, r.cfg.Ranking),
		Dedup:   rank.NewDeduper(),
		Stream:  out,
	}
	if r.deps.Launcher != nil {
		browser, err := r.deps.Launcher.Launch(ctx)
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer func() {
			if cerr := browser.Close(); cerr != nil {
				logger.Warn("browser close failed", zap.Error(cerr))
			}
		}()
		search.Browser = browser
	}

	tasks := make([]product.SiteTask, len(urls))
	for i, u := range urls {
		tasks[i] = product.SiteTask{SearchID: id, Keyword: keyword, URL: u, Index: i + 1, Total: len(urls)}
	}
	queue := queuemem.NewQueue(len(tasks))
	if err := dispatcher.Submit(ctx, queue, tasks); err != nil {
		return err
	}
	r.deps.Dispatcher.Run(ctx, search, queue)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		sum.TimedOut = true
		logger.Warn("search timed out", zap.Int("processed", search.Processed()), zap.Int("sites", len(urls)))
		emit(out, stream.StatusEvent(fmt.Sprintf("Search timed out after %d of %d sites", search.Processed(), len(urls))))
	case ctx.Err() != nil:
		return fmt.Errorf("search canceled: %w", ctx.Err())
	}
	sum.Products = search.Matcher.Sort(search.Dedup.All())
	return nil
}

func (r *Runner) fail(sum Summary, out stream.Emitter, logger *zap.Logger, err error) (Summary, error) {
	logger.Error("search failed", zap.Error(err))
	emit(out, stream.ErrorEvent(err))
	r.emitProgress(progress.Event{
		SearchID: progress.UUIDToBytes(sum.SearchID),
		Stage:    progress.StageSearchError,
		Sites:    int64(sum.Sites),
		Dur:      r.deps.Clock.Now().Sub(sum.StartedAt),
		Note:     err.Error(),
	})
	return sum, err
}

// completedMessage is the Pub/Sub body of a finished search.
type completedMessage struct {
	SearchID      string            `json:"search_id"`
	Keyword       string            `json:"keyword"`
	Sites         int               `json:"sites"`
	TotalProducts int               `json:"total_products"`
	TimedOut      bool              `json:"timed_out"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Products      []product.Product `json:"products"`
}

func (r *Runner) publish(ctx context.Context, sum Summary, logger *zap.Logger) {
	if r.deps.Publisher == nil {
		return
	}
	msg := completedMessage{
		SearchID:      sum.SearchID.String(),
		Keyword:       sum.Keyword,
		Sites:         sum.Sites,
		TotalProducts: len(sum.Products),
		TimedOut:      sum.TimedOut,
		StartedAt:     sum.StartedAt,
		FinishedAt:    sum.FinishedAt,
		Products:      sum.Products,
	}
	attrs := map[string]string{"search_id": msg.SearchID, "event": "search.completed"}
	// The search deadline may already be spent; publishing gets its own budget.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	msgID, err := r.deps.Publisher.Publish(pubCtx, msg, attrs)
	if err != nil {
		logger.Warn("publish search summary failed", zap.Error(err))
		return
	}
	logger.Debug("search summary published", zap.String("message_id", msgID))
}

func (r *Runner) emitProgress(evt progress.Event) {
	evt.TS = r.deps.Clock.Now()
	r.deps.Events.Emit(evt)
}

func emit(out stream.Emitter, evt stream.Event) {
	if out == nil {
		return
	}
	_ = out.Emit(evt)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
