package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/progress"
)

// PrometheusSink exports search lifecycle metrics. It owns the collectors
// for searches started/completed/running and per-site outcomes.
type PrometheusSink struct {
	searchesStarted   prometheus.Counter
	searchesCompleted *prometheus.CounterVec
	searchesRunning   prometheus.Gauge
	searchRuntime     *prometheus.HistogramVec

	sites        *prometheus.CounterVec
	siteDuration *prometheus.HistogramVec
	products     *prometheus.CounterVec

	tracker *searchTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		searchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "product_search_searches_started_total",
			Help: "Total searches that have started.",
		}),
		searchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "product_search_searches_completed_total",
			Help: "Total searches completed partitioned by result.",
		}, []string{"result"}),
		searchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "product_search_searches_running",
			Help: "Current number of running searches.",
		}),
		searchRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "product_search_search_runtime_seconds",
			Help:    "Wall time per completed search.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		sites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "product_search_sites_total",
			Help: "Sites scanned partitioned by outcome and status class.",
		}, []string{"outcome", "status_class", "rendered"}),
		siteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "product_search_site_duration_seconds",
			Help:    "Per-site processing time partitioned by outcome.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}, []string{"outcome"}),
		products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "product_search_products_found_total",
			Help: "New products found per site.",
		}, []string{"site"}),
		tracker: newSearchTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.searchesStarted,
		s.searchesCompleted,
		s.searchesRunning,
		s.searchRuntime,
		s.sites,
		s.siteDuration,
		s.products,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageSearchStart:
			s.searchesStarted.Inc()
			if s.tracker.start(evt.SearchID) {
				s.searchesRunning.Inc()
			}
		case progress.StageSearchDone:
			s.finish(evt, "success")
		case progress.StageSearchError:
			s.finish(evt, "error")
		case progress.StageSiteDone:
			s.handleSite(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.searchesCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.searchRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.SearchID) {
		s.searchesRunning.Dec()
	}
}

func (s *PrometheusSink) handleSite(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	rendered := "false"
	if evt.Rendered {
		rendered = "true"
	}
	s.sites.WithLabelValues(string(evt.Outcome), statusClass, rendered).Inc()
	if evt.Dur > 0 {
		s.siteDuration.WithLabelValues(string(evt.Outcome)).Observe(evt.Dur.Seconds())
	}
	if evt.Products > 0 {
		s.products.WithLabelValues(metrics.SanitizeSite(evt.Site)).Add(float64(evt.Products))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type searchTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSearchTracker() *searchTracker {
	return &searchTracker{running: make(map[[16]byte]struct{})}
}

func (t *searchTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *searchTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
