// Package metrics exposes Prometheus collectors for the product search service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	searchCallsTotal           *prometheus.CounterVec
	modelCallsTotal            *prometheus.CounterVec
	modelCallDurationSeconds   *prometheus.HistogramVec
	extractionsTotal           *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_search_fetches_total",
				Help: "Total number of page fetches, labeled by mode (probe or render) and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_search_fetch_bytes_total",
				Help: "Total number of HTML bytes fetched, labeled by mode.",
			},
			[]string{"mode"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60, 180},
			},
			[]string{"method", "route"},
		)

		searchCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_search_search_api_calls_total",
				Help: "Total number of search API lookups, labeled by outcome (ok, error, cache_hit).",
			},
			[]string{"outcome"},
		)

		modelCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_search_model_calls_total",
				Help: "Total number of language model completions, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		modelCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "product_search_model_call_duration_seconds",
				Help:    "Histogram of language model completion latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"provider"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_search_extractions_total",
				Help: "Total number of page extractions, labeled by method (structured, ai, none).",
			},
			[]string{"method"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "product_search_active_workers",
				Help: "Number of workers currently processing a site.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "product_search_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by limiter key.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch.
func ObserveFetch(mode, outcome string, bytesFetched int) {
	Init()
	fetchesTotal.WithLabelValues(mode, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(mode).Add(float64(bytesFetched))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSearchCall records a search API lookup.
func ObserveSearchCall(outcome string) {
	Init()
	searchCallsTotal.WithLabelValues(outcome).Inc()
}

// ObserveModelCall records a language model completion.
func ObserveModelCall(provider, outcome string, duration time.Duration) {
	Init()
	modelCallsTotal.WithLabelValues(provider, outcome).Inc()
	modelCallDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveExtraction records which extraction method produced a page's products.
func ObserveExtraction(method string) {
	Init()
	extractionsTotal.WithLabelValues(method).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}
