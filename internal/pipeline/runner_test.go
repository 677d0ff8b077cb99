package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/dispatcher"
	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/progress"
	"github.com/JakeFAU/product-search-crawler/internal/publisher/memory"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
	"github.com/JakeFAU/product-search-crawler/internal/worker"
)

func price(v float64) *float64 { return &v }

func TestRunner_FullSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{urls: []string{"https://a.example/", "https://b.example/", "https://c.example/"}}
	launcher := &fakeLauncher{}
	extractor := extractorFunc(func(_ context.Context, page product.Page, _ string) ([]product.Product, error) {
		switch page.URL {
		case "https://a.example/":
			return []product.Product{
				{Title: "Car Sticker Decal", ProductURL: "https://a.example/p/1"},
				{Title: "Lawn Mower", ProductURL: "https://a.example/p/2"},
			}, nil
		case "https://b.example/":
			return []product.Product{
				{Title: "Car Sticker Decal", ProductURL: "https://b.example/p/9"},
				{Title: "Funny Car Sticker", ProductURL: "https://b.example/p/3", Price: price(4.5)},
			}, nil
		default:
			return nil, errors.New("model reply malformed")
		}
	})
	pub := memory.New()
	events := &progressRecorder{}
	runner := newRunner(t, searcher, launcher, extractor, pub, events)
	out := &stream.Recorder{}

	sum, err := runner.Run(context.Background(), "  car sticker ", out)
	require.NoError(t, err)
	require.Equal(t, "car sticker", sum.Keyword)
	require.Equal(t, 3, sum.Sites)
	require.Len(t, sum.Products, 2)
	require.Equal(t, "Funny Car Sticker", sum.Products[0].Title, "priced first on equal score")
	require.False(t, sum.TimedOut)

	types := out.Types()
	require.Equal(t, stream.TypeStatus, types[0])
	require.Equal(t, stream.TypeStatus, types[1])
	require.Equal(t, stream.TypeComplete, types[len(types)-1])
	require.Len(t, out.OfType(stream.TypeProcessing), 3)
	require.Len(t, out.OfType(stream.TypeProgress), 3)

	status := out.OfType(stream.TypeStatus)
	require.Equal(t, `Searching for "car sticker"...`, status[0].Payload.(stream.Status).Message)
	require.Equal(t, "Found 3 sites to scan", status[1].Payload.(stream.Status).Message)

	complete := out.OfType(stream.TypeComplete)[0].Payload.(stream.Complete)
	require.Equal(t, sum.SearchID.String(), complete.SearchID)
	require.Equal(t, 2, complete.TotalProducts)

	require.True(t, launcher.browser.closed)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, sum.SearchID.String(), msgs[0].Attributes["search_id"])

	stages := events.Stages()
	require.Equal(t, progress.StageSearchStart, stages[0])
	require.Equal(t, progress.StageSearchDone, stages[len(stages)-1])
	require.Len(t, stages, 5)
}

func TestRunner_NoResults(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	runner := newRunner(t, &fakeSearcher{}, launcher, nil, nil, nil)
	out := &stream.Recorder{}

	sum, err := runner.Run(context.Background(), "unobtainium", out)
	require.NoError(t, err)
	require.Empty(t, sum.Products)
	require.Equal(t, []stream.Type{stream.TypeStatus, stream.TypeStatus, stream.TypeComplete}, out.Types())
	require.Nil(t, launcher.browser, "browser is not launched without sites")
	require.Equal(t, "Found 0 sites to scan", out.OfType(stream.TypeStatus)[1].Payload.(stream.Status).Message)
}

func TestRunner_SearchErrorIsFatal(t *testing.T) {
	t.Parallel()

	events := &progressRecorder{}
	runner := newRunner(t, &fakeSearcher{err: errors.New("google API not configured")}, &fakeLauncher{}, nil, nil, events)
	out := &stream.Recorder{}

	_, err := runner.Run(context.Background(), "mugs", out)
	require.EqualError(t, err, "google API not configured")
	require.Equal(t, []stream.Type{stream.TypeStatus, stream.TypeError}, out.Types())
	require.Equal(t, "google API not configured", out.OfType(stream.TypeError)[0].Payload.(stream.Failure).Error)
	require.Equal(t, []progress.Stage{progress.StageSearchStart, progress.StageSearchError}, events.Stages())
}

func TestRunner_LaunchErrorIsFatal(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{err: errors.New("chrome not found")}
	runner := newRunner(t, &fakeSearcher{urls: []string{"https://a.example/"}}, launcher, nil, nil, nil)
	out := &stream.Recorder{}

	_, err := runner.Run(context.Background(), "mugs", out)
	require.ErrorContains(t, err, "launch browser")
	types := out.Types()
	require.Equal(t, stream.TypeError, types[len(types)-1])
	require.Empty(t, out.OfType(stream.TypeComplete))
}

func TestRunner_TimeoutKeepsPartialResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{urls: []string{"https://fast.example/", "https://slow.example/"}}
	extractor := extractorFunc(func(ctx context.Context, page product.Page, _ string) ([]product.Product, error) {
		if page.URL == "https://slow.example/" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []product.Product{{Title: "Blue Mug Large", ImageURL: "https://img.example/m.jpg"}}, nil
	})
	runner := newRunner(t, searcher, &fakeLauncher{}, extractor, nil, nil)
	runner.cfg.Timeout = 100 * time.Millisecond
	out := &stream.Recorder{}

	sum, err := runner.Run(context.Background(), "mug", out)
	require.NoError(t, err)
	require.True(t, sum.TimedOut)
	require.Len(t, sum.Products, 1)
	types := out.Types()
	require.Equal(t, stream.TypeComplete, types[len(types)-1])
}

func TestRunner_CanceledRequest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	extractor := extractorFunc(func(context.Context, product.Page, string) ([]product.Product, error) {
		cancel()
		return nil, nil
	})
	runner := newRunner(t, &fakeSearcher{urls: []string{"https://a.example/"}}, &fakeLauncher{}, extractor, nil, nil)

	_, err := runner.Run(ctx, "mug", &stream.Recorder{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Validation(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, &fakeSearcher{}, nil, nil, nil, nil)
	_, err := runner.Run(context.Background(), "   ", &stream.Recorder{})
	require.ErrorIs(t, err, ErrEmptyKeyword)

	_, err = New(Deps{}, Config{}, nil)
	require.Error(t, err)
}

func newRunner(
	t *testing.T,
	searcher product.Searcher,
	launcher product.BrowserLauncher,
	extractor product.Extractor,
	pub product.Publisher,
	events progress.Emitter,
) *Runner {
	t.Helper()

	w := worker.New(worker.Deps{Extractor: extractor, Events: events}, worker.Config{SiteTimeout: time.Second}, zap.NewNop())
	deps := Deps{
		Searcher:   searcher,
		Dispatcher: dispatcher.New(w, 2),
		Events:     events,
		IDs:        seqIDs{},
	}
	if launcher != nil {
		deps.Launcher = launcher
	}
	if pub != nil {
		deps.Publisher = pub
	}
	runner, err := New(deps, Config{Ranking: rank.Config{MinScore: 1}}, zap.NewNop())
	require.NoError(t, err)
	return runner
}

type seqIDs struct{}

func (seqIDs) NewSearchID() (uuid.UUID, error) { return uuid.NewV7() }

type fakeSearcher struct {
	urls []string
	err  error
}

func (f *fakeSearcher) Search(context.Context, string) ([]string, error) {
	return f.urls, f.err
}

type fakeLauncher struct {
	err     error
	browser *fakeBrowser
}

func (f *fakeLauncher) Launch(context.Context) (product.Browser, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.browser = &fakeBrowser{}
	return f.browser, nil
}

type fakeBrowser struct {
	mu     sync.Mutex
	closed bool
}

func (b *fakeBrowser) Fetch(_ context.Context, url string) (product.Page, error) {
	return product.Page{URL: url, StatusCode: 200, HTML: "<html></html>", Rendered: true}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type extractorFunc func(context.Context, product.Page, string) ([]product.Product, error)

func (f extractorFunc) Extract(ctx context.Context, page product.Page, kw string) ([]product.Product, error) {
	return f(ctx, page, kw)
}

type progressRecorder struct {
	mu     sync.Mutex
	stages []progress.Stage
}

func (r *progressRecorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, evt.Stage)
}

func (r *progressRecorder) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Stage(nil), r.stages...)
}
