package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-search-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the search lifecycle.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	searchID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{SearchID: searchID, TS: now, Stage: progress.StageSearchStart, Keyword: "mugs", Sites: 2},
		{
			SearchID:    searchID,
			TS:          now.Add(5 * time.Second),
			Stage:       progress.StageSiteDone,
			Site:        "shop.example",
			Outcome:     progress.OutcomeProducts,
			StatusClass: progress.Status2xx,
			Rendered:    true,
			Products:    4,
			Dur:         2 * time.Second,
		},
		{
			SearchID: searchID,
			TS:       now.Add(6 * time.Second),
			Stage:    progress.StageSiteDone,
			Site:     "other.example",
			Outcome:  progress.OutcomeFailed,
		},
		{SearchID: searchID, TS: now.Add(10 * time.Second), Stage: progress.StageSearchDone, Dur: 10 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.searchesStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.searchesCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.searchesCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.searchesRunning))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.sites.WithLabelValues("products", "2xx", "true")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.sites.WithLabelValues("failed", "other", "false")), 1e-9)
	require.InDelta(t, 4.0, testutil.ToFloat64(sink.products.WithLabelValues("shop.example")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.siteDuration, "product_search_site_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.searchRuntime, "product_search_search_runtime_seconds"))
}

func TestPrometheusSinkRunningGauge(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	a := progress.UUIDToBytes(uuid.New())
	b := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{SearchID: a, TS: now, Stage: progress.StageSearchStart, Keyword: "a"},
		{SearchID: a, TS: now, Stage: progress.StageSearchStart, Keyword: "a"},
		{SearchID: b, TS: now, Stage: progress.StageSearchStart, Keyword: "b"},
		{SearchID: b, TS: now, Stage: progress.StageSearchError, Note: "launch"},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.searchesRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.searchesCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
