// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/api"
	"github.com/JakeFAU/product-search-crawler/internal/clock/system"
	"github.com/JakeFAU/product-search-crawler/internal/config"
	"github.com/JakeFAU/product-search-crawler/internal/dispatcher"
	"github.com/JakeFAU/product-search-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/product-search-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/product-search-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/product-search-crawler/internal/hash/sha256"
	"github.com/JakeFAU/product-search-crawler/internal/headless/detector"
	"github.com/JakeFAU/product-search-crawler/internal/id/uuid"
	"github.com/JakeFAU/product-search-crawler/internal/llm"
	"github.com/JakeFAU/product-search-crawler/internal/logging"
	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/pipeline"
	"github.com/JakeFAU/product-search-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/product-search-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/product-search-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
	"github.com/JakeFAU/product-search-crawler/internal/searcher/google"
	gcsstorage "github.com/JakeFAU/product-search-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/product-search-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/product-search-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/product-search-crawler/internal/storage/postgres"
	"github.com/JakeFAU/product-search-crawler/internal/store"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
	"github.com/JakeFAU/product-search-crawler/internal/worker"
)

const maxMemorySearches = 1000

// App contains the application's dependencies.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	apiServer   *api.Server
	runner      *pipeline.Runner
	progressHub *progress.Hub
	history     store.HistoryRepository
	pgHistory   *pgstore.HistoryStore
	gcsStore    *gcsstorage.BlobStore
	publisher   *gcppublisher.Publisher
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	// Only non-sensitive fields are logged.
	type sanitizedConfig struct {
		ServerPort      int    `json:"server_port"`
		AIProvider      string `json:"ai_provider"`
		StorageBackend  string `json:"storage_backend"`
		Concurrency     int    `json:"concurrency"`
		ProbeEnabled    bool   `json:"probe_enabled"`
		HistoryPostgres bool   `json:"history_postgres"`
	}
	logger.Info("creating application", zap.Any("config", sanitizedConfig{
		ServerPort:      cfg.Server.Port,
		AIProvider:      cfg.AI.Provider,
		StorageBackend:  cfg.Storage.Backend,
		Concurrency:     cfg.Pipeline.Concurrency,
		ProbeEnabled:    cfg.Probe.Enabled,
		HistoryPostgres: cfg.Database.DSN != "",
	}))
	return &App{cfg: cfg, logger: logger}, nil
}

// Run serves HTTP until ctx is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Search runs one search outside the HTTP server.
func (a *App) Search(ctx context.Context, keyword string, out stream.Emitter) (pipeline.Summary, error) {
	return a.runner.Run(ctx, keyword, out)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Close flushes the progress hub and releases clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub publisher: %w", err))
		}
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client: %w", err))
		}
	}
	if a.pgHistory != nil {
		a.pgHistory.Close()
	}
	for _, err := range errs {
		a.logger.Warn("shutdown error", zap.Error(err))
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	built := false
	defer func() {
		if !built {
			_ = app.Close(context.Background())
		}
	}()

	snapshots, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	if err = setupHistory(ctx, app); err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	events, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}
	app.runner, err = setupRunner(ctx, app, snapshots, publisher, events)
	if err != nil {
		return nil, err
	}

	app.apiServer = api.NewServer(app.runner, app.history, *cfg, logger.Named("api"))
	if app.pgHistory != nil {
		app.apiServer.AddReadinessCheck("database", app.pgHistory)
	}

	built = true
	return app, nil
}

func setupStorage(ctx context.Context, app *App) (product.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		blobStore, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: app.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.gcsStore = blobStore
		app.logger.Info("using GCS snapshot storage", zap.String("bucket", app.cfg.Storage.Bucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local snapshot storage", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return blobStore, nil
	case "memory":
		app.logger.Info("using in-memory snapshot storage")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("page snapshots disabled")
		return nil, nil
	}
}

func setupHistory(ctx context.Context, app *App) error {
	if app.cfg.Database.DSN == "" {
		app.logger.Info("no database DSN, keeping search history in memory", zap.Int("max_searches", maxMemorySearches))
		app.history = memorystorage.NewHistoryStore(maxMemorySearches)
		return nil
	}
	hs, err := pgstore.NewHistoryStore(ctx, pgstore.Config{
		DSN:             app.cfg.Database.DSN,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: app.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("history store init failed: %w", err)
	}
	app.pgHistory = hs
	if err := hs.Migrate(ctx); err != nil {
		return fmt.Errorf("history store migrate failed: %w", err)
	}
	app.history = hs
	app.logger.Info("postgres search history initialized")
	return nil
}

func setupPublisher(ctx context.Context, app *App) (product.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, search summaries are not published")
		return nil, nil
	}
	pub, err := gcppublisher.Open(ctx, app.cfg.PubSub.ProjectID, app.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return progress.Discard, nil
	}
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{
		promSink,
		progresssinks.NewStoreSink(app.history, app.logger.Named("progress_store")),
	}
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   app.cfg.Progress.MaxBatchWait,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("sinks", app.progressHub.Sinks()),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return app.progressHub, nil
}

func setupRunner(
	ctx context.Context,
	app *App,
	snapshots product.BlobStore,
	publisher product.Publisher,
	events progress.Emitter,
) (*pipeline.Runner, error) {
	cfg := app.cfg
	ranking := rank.Config{
		MinScore:  cfg.Ranking.MinScore,
		Blacklist: cfg.Ranking.Blacklist,
		Synonyms:  cfg.Ranking.Synonyms,
	}

	searcher, err := google.New(ctx, google.Config{
		APIKey:    cfg.Search.APIKey,
		CX:        cfg.Search.CX,
		Endpoint:  cfg.Search.Endpoint,
		Results:   cfg.Search.Results,
		Country:   cfg.Search.Country,
		Restrict:  cfg.Search.Restrict,
		Blocklist: cfg.Search.Blocklist,
		CacheTTL:  cfg.Search.CacheTTL,
		Timeout:   time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	}, app.logger.Named("google"))
	if err != nil {
		return nil, fmt.Errorf("searcher init failed: %w", err)
	}

	launcher, err := headlessfetcher.NewLauncher(headlessfetcher.Config{
		ExecPath:          cfg.Browser.ExecPath,
		UserAgent:         cfg.Browser.UserAgent,
		MaxParallel:       cfg.Pipeline.Concurrency,
		NavigationTimeout: time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		Settle:            time.Duration(cfg.Browser.SettleMillis) * time.Millisecond,
		ScrollSteps:       cfg.Browser.ScrollSteps,
		ScrollDelay:       time.Duration(cfg.Browser.ScrollDelayMillis) * time.Millisecond,
		BlockResources:    cfg.Browser.BlockResources,
	}, app.logger.Named("browser"))
	if err != nil {
		return nil, fmt.Errorf("browser launcher init failed: %w", err)
	}

	var aiExtractor product.Extractor
	completer, err := llm.FromConfig(cfg.AI, app.logger.Named("llm"))
	switch {
	case errors.Is(err, llm.ErrNoKey):
		app.logger.Warn("no model API key configured, extraction uses structured data only")
	case err != nil:
		return nil, fmt.Errorf("model client init failed: %w", err)
	default:
		aiExtractor = extract.NewAI(completer, extract.AIConfig{
			MaxInputChars:   cfg.AI.MaxInputChars,
			MaxProducts:     cfg.AI.MaxProducts,
			Attempts:        cfg.AI.Attempts,
			Markdown:        cfg.AI.Markdown,
			DefaultCurrency: cfg.AI.DefaultCurrency,
		}, app.logger.Named("extract"))
	}
	var structured product.Extractor
	if cfg.AI.StructuredFirst || aiExtractor == nil {
		structured = extract.NewStructured(cfg.AI.DefaultCurrency)
	}

	deps := worker.Deps{
		Extractor: extract.NewChain(structured, aiExtractor, ranking),
		Snapshots: snapshots,
		Hasher:    sha256.New(),
		Events:    events,
		Clock:     system.New(),
	}
	if cfg.Probe.Enabled {
		deps.Probe = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Probe.UserAgent,
			Timeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		})
		deps.Detector = detector.NewHeuristic(cfg.Probe.BodyLengthThreshold)
		app.logger.Info("plain HTTP probe enabled", zap.Int("body_length_threshold", cfg.Probe.BodyLengthThreshold))
	}
	if cfg.Pipeline.DomainRPS > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Pipeline.DomainRPS,
			DefaultBurst: cfg.Pipeline.DomainBurst,
		})
		app.logger.Info("per-domain rate limit enabled",
			zap.Float64("rps", cfg.Pipeline.DomainRPS),
			zap.Int("burst", cfg.Pipeline.DomainBurst),
		)
	}

	w := worker.New(deps, worker.Config{
		SiteTimeout:    cfg.SiteTimeout(),
		SnapshotPrefix: cfg.Storage.Prefix,
		ContentType:    cfg.Storage.ContentType,
	}, app.logger.Named("worker"))
	app.logger.Info("worker pool configured",
		zap.Int("concurrency", cfg.Pipeline.Concurrency),
		zap.Duration("site_timeout", cfg.SiteTimeout()),
	)

	runner, err := pipeline.New(pipeline.Deps{
		Searcher:   searcher,
		Launcher:   launcher,
		Dispatcher: dispatcher.New(w, cfg.Pipeline.Concurrency),
		Publisher:  publisher,
		Events:     events,
		IDs:        uuid.NewGenerator(),
		Clock:      system.New(),
	}, pipeline.Config{
		Ranking: ranking,
		Timeout: cfg.SearchTimeout(),
	}, app.logger.Named("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}
	return runner, nil
}
