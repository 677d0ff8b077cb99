package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/product-search-crawler/internal/store"
)

// HistoryStore implements store.HistoryRepository in memory. It keeps at
// most maxSearches runs and evicts the oldest first.
type HistoryStore struct {
	mu          sync.RWMutex
	maxSearches int
	order       []uuid.UUID
	searches    map[uuid.UUID]store.SearchRun
	sites       map[uuid.UUID][]store.SiteResult
}

// NewHistoryStore constructs a HistoryStore. maxSearches <= 0 means 1000.
func NewHistoryStore(maxSearches int) *HistoryStore {
	if maxSearches <= 0 {
		maxSearches = 1000
	}
	return &HistoryStore{
		maxSearches: maxSearches,
		searches:    make(map[uuid.UUID]store.SearchRun),
		sites:       make(map[uuid.UUID][]store.SiteResult),
	}
}

// StartSearch records a running search.
func (s *HistoryStore) StartSearch(_ context.Context, id uuid.UUID, keyword string, sites int64, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.searches[id]; ok {
		run.Sites = sites
		s.searches[id] = run
		return nil
	}
	s.searches[id] = store.SearchRun{
		ID:        id,
		Keyword:   keyword,
		Status:    store.StatusRunning,
		StartedAt: startedAt.UTC(),
		Sites:     sites,
	}
	s.order = append(s.order, id)
	for len(s.order) > s.maxSearches {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.searches, oldest)
		delete(s.sites, oldest)
	}
	return nil
}

// RecordSite appends a site result. Unknown searches are ignored so late
// events for an evicted run do not resurrect it.
func (s *HistoryStore) RecordSite(_ context.Context, result store.SiteResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searches[result.SearchID]; !ok {
		return nil
	}
	s.sites[result.SearchID] = append(s.sites[result.SearchID], result)
	return nil
}

// CompleteSearch marks the search finished.
func (s *HistoryStore) CompleteSearch(_ context.Context, id uuid.UUID, done store.SearchCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.searches[id]
	if !ok {
		return store.ErrNotFound
	}
	finished := done.FinishedAt.UTC()
	run.Status = done.Status
	run.FinishedAt = &finished
	if done.Sites > 0 {
		run.Sites = done.Sites
	}
	run.Products = done.Products
	if done.Error != nil {
		msg := *done.Error
		run.Error = &msg
	}
	s.searches[id] = run
	return nil
}

// GetSearch fetches a search by ID.
func (s *HistoryStore) GetSearch(_ context.Context, id uuid.UUID) (store.SearchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.searches[id]
	if !ok {
		return store.SearchRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListSearches returns searches newest first.
func (s *HistoryStore) ListSearches(
	_ context.Context,
	status *store.SearchStatus,
	limit, offset int,
) ([]store.SearchRun, error) {
	s.mu.RLock()
	runs := make([]store.SearchRun, 0, len(s.searches))
	for _, run := range s.searches {
		if status != nil && run.Status != *status {
			continue
		}
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return page(runs, limit, offset), nil
}

// ListSearchSites returns site results in recording order.
func (s *HistoryStore) ListSearchSites(
	_ context.Context,
	id uuid.UUID,
	limit, offset int,
) ([]store.SiteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.searches[id]; !ok {
		return nil, store.ErrNotFound
	}
	sites := append([]store.SiteResult(nil), s.sites[id]...)
	return page(sites, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
