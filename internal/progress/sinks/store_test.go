package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-search-crawler/internal/progress"
	"github.com/JakeFAU/product-search-crawler/internal/storage/memory"
	"github.com/JakeFAU/product-search-crawler/internal/store"
)

// TestStoreSinkPersistsEvents replays a full search into the in-memory history store.
func TestStoreSinkPersistsEvents(t *testing.T) {
	t.Parallel()

	repo := memory.NewHistoryStore(10)
	sink := NewStoreSink(repo, nil)
	id := uuid.New()
	searchID := progress.UUIDToBytes(id)
	now := time.Now().UTC()

	batch := []progress.Event{
		{SearchID: searchID, Stage: progress.StageSearchStart, TS: now, Keyword: "mugs", Sites: 2},
		{
			SearchID:    searchID,
			Stage:       progress.StageSiteDone,
			TS:          now.Add(time.Second),
			Site:        "shop.example",
			URL:         "https://shop.example/mugs",
			Outcome:     progress.OutcomeProducts,
			StatusClass: progress.Status2xx,
			Products:    3,
			Dur:         time.Second,
		},
		{
			SearchID: searchID,
			Stage:    progress.StageSiteDone,
			TS:       now.Add(2 * time.Second),
			Site:     "slow.example",
			Outcome:  progress.OutcomeFailed,
			Note:     "navigation timeout",
		},
		{SearchID: searchID, Stage: progress.StageSearchDone, TS: now.Add(3 * time.Second), Sites: 2, Products: 3},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, err := repo.GetSearch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, store.StatusSuccess, run.Status)
	require.Equal(t, "mugs", run.Keyword)
	require.Equal(t, int64(3), run.Products)

	sites, err := repo.ListSearchSites(context.Background(), id, 0, 0)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	require.Equal(t, "navigation timeout", sites[1].Note)
	require.Equal(t, "failed", sites[1].Outcome)
}

func TestStoreSinkErrorStage(t *testing.T) {
	t.Parallel()

	repo := memory.NewHistoryStore(10)
	sink := NewStoreSink(repo, nil)
	id := uuid.New()
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{SearchID: progress.UUIDToBytes(id), Stage: progress.StageSearchStart, TS: now, Keyword: "mugs"},
		{SearchID: progress.UUIDToBytes(id), Stage: progress.StageSearchError, TS: now, Note: "google API not configured"},
		{SearchID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageSearchDone, TS: now},
	}))

	run, err := repo.GetSearch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, store.StatusError, run.Status)
	require.Equal(t, "google API not configured", *run.Error)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(failingRepo{}, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{SearchID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageSearchStart, TS: time.Now(), Keyword: "x"},
	})
	require.ErrorIs(t, err, errRepo)

	var nilSink *StoreSink
	require.NoError(t, nilSink.Consume(context.Background(), nil))
}

var errRepo = errors.New("repo down")

type failingRepo struct{ store.HistoryRepository }

func (failingRepo) StartSearch(context.Context, uuid.UUID, string, int64, time.Time) error {
	return errRepo
}
