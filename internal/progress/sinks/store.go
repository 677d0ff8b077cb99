package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/progress"
	"github.com/JakeFAU/product-search-crawler/internal/store"
)

// StoreSink writes search events into a store.HistoryRepository.
type StoreSink struct {
	repo   store.HistoryRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.HistoryRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies events in order and stops at the first repository error.
// Completing a search the repository never saw is logged and skipped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		id := evt.SearchUUID()
		switch evt.Stage {
		case progress.StageSearchStart:
			if err := s.repo.StartSearch(ctx, id, evt.Keyword, evt.Sites, evt.TS); err != nil {
				return fmt.Errorf("start search: %w", err)
			}
		case progress.StageSiteDone:
			err := s.repo.RecordSite(ctx, store.SiteResult{
				SearchID:    id,
				Site:        evt.Site,
				URL:         evt.URL,
				Outcome:     string(evt.Outcome),
				StatusClass: string(evt.StatusClass),
				Rendered:    evt.Rendered,
				Products:    evt.Products,
				Duration:    evt.Dur,
				Note:        evt.Note,
				RecordedAt:  evt.TS,
			})
			if err != nil {
				return fmt.Errorf("record site: %w", err)
			}
		case progress.StageSearchDone, progress.StageSearchError:
			if err := s.complete(ctx, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, evt progress.Event) error {
	done := store.SearchCompletion{
		Status:     store.StatusSuccess,
		FinishedAt: evt.TS,
		Sites:      evt.Sites,
		Products:   evt.Products,
	}
	if evt.Stage == progress.StageSearchError {
		done.Status = store.StatusError
		if evt.Note != "" {
			note := evt.Note
			done.Error = &note
		}
	}
	err := s.repo.CompleteSearch(ctx, evt.SearchUUID(), done)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("completed search missing from history", zap.Stringer("search_id", evt.SearchUUID()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete search: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
