package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/store"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
	defaultSitesLimit  = 100
	maxSitesLimit      = 1000
	historyTimeout     = 3 * time.Second
)

// HistoryHandler exposes read-only search history endpoints.
type HistoryHandler struct {
	repo    store.HistoryRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the repository and logger.
func NewHistoryHandler(repo store.HistoryRepository, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListSearches handles GET /api/searches?status=&limit=&offset=. It returns
// {"searches": [...]} newest first, 400 for invalid filters, or 503 when no
// repository is configured.
func (h *HistoryHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.SearchStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, parseErr := parseStatus(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &st
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	runs, err := h.repo.ListSearches(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list searches failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list searches")
		return
	}
	if runs == nil {
		runs = []store.SearchRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": runs})
}

// GetSearch handles GET /api/searches/{search_id}. It returns {"search": {...}},
// 400 for malformed ids, or 404 when the search is unknown.
func (h *HistoryHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	id, err := parseSearchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	run, err := h.repo.GetSearch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "search not found")
			return
		}
		h.logger.Error("get search failed", zap.Stringer("search_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load search")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"search": run})
}

// ListSearchSites handles GET /api/searches/{search_id}/sites?limit=&offset=.
func (h *HistoryHandler) ListSearchSites(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	id, err := parseSearchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSitesLimit, maxSitesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sites, err := h.repo.ListSearchSites(ctx, id, limit, offset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "search not found")
			return
		}
		h.logger.Error("list search sites failed", zap.Stringer("search_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list search sites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": toSiteDTOs(sites)})
}

func parseSearchID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "search_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("search_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid search_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.SearchStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.StatusRunning, nil
	case "success", "done", "complete":
		return store.StatusSuccess, nil
	case "error", "failed", "failure":
		return store.StatusError, nil
	default:
		return "", errors.New("invalid status")
	}
}

type siteDTO struct {
	Site        string    `json:"site"`
	URL         string    `json:"url"`
	Outcome     string    `json:"outcome"`
	StatusClass string    `json:"status_class"`
	Rendered    bool      `json:"rendered"`
	Products    int64     `json:"products"`
	DurationMS  int64     `json:"duration_ms"`
	Note        string    `json:"note,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func toSiteDTOs(in []store.SiteResult) []siteDTO {
	out := make([]siteDTO, 0, len(in))
	for _, s := range in {
		out = append(out, siteDTO{
			Site:        s.Site,
			URL:         s.URL,
			Outcome:     s.Outcome,
			StatusClass: s.StatusClass,
			Rendered:    s.Rendered,
			Products:    s.Products,
			DurationMS:  s.Duration.Milliseconds(),
			Note:        s.Note,
			RecordedAt:  s.RecordedAt,
		})
	}
	return out
}
