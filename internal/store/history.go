package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested search does not exist.
var ErrNotFound = errors.New("search not found")

// SearchStatus mirrors the search_runs status column.
type SearchStatus string

// Search statuses persisted in search_runs.status.
const (
	StatusRunning SearchStatus = "running"
	StatusSuccess SearchStatus = "success"
	StatusError   SearchStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s SearchStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusSuccess, StatusError:
		return true
	}
	return false
}

// SearchRun is one keyword search.
type SearchRun struct {
	ID         uuid.UUID    `json:"search_id"`
	Keyword    string       `json:"keyword"`
	Status     SearchStatus `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	// Sites is the number of result pages the search produced.
	Sites    int64   `json:"sites"`
	Products int64   `json:"products"`
	Error    *string `json:"error,omitempty"`
}

// SiteResult is the outcome of scanning one site within a search.
type SiteResult struct {
	SearchID    uuid.UUID     `json:"search_id"`
	Site        string        `json:"site"`
	URL         string        `json:"url"`
	Outcome     string        `json:"outcome"`
	StatusClass string        `json:"status_class"`
	Rendered    bool          `json:"rendered"`
	Products    int64         `json:"products"`
	Duration    time.Duration `json:"duration_ns"`
	Note        string        `json:"note,omitempty"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// SearchCompletion carries the final state of a search.
type SearchCompletion struct {
	Status     SearchStatus
	FinishedAt time.Time
	Sites      int64
	Products   int64
	Error      *string
}

// HistoryRepository persists search runs and their per-site results.
type HistoryRepository interface {
	// StartSearch inserts a running search; repeated calls are idempotent.
	StartSearch(ctx context.Context, id uuid.UUID, keyword string, sites int64, startedAt time.Time) error
	// RecordSite appends a site result to the search.
	RecordSite(ctx context.Context, result SiteResult) error
	// CompleteSearch marks the search finished.
	CompleteSearch(ctx context.Context, id uuid.UUID, done SearchCompletion) error

	// GetSearch loads a single search or returns ErrNotFound.
	GetSearch(ctx context.Context, id uuid.UUID) (SearchRun, error)
	// ListSearches returns newest first, optionally filtered by status.
	ListSearches(ctx context.Context, status *SearchStatus, limit, offset int) ([]SearchRun, error)
	// ListSearchSites returns site results in recording order.
	ListSearchSites(ctx context.Context, id uuid.UUID, limit, offset int) ([]SiteResult, error)
}
