package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/progress"
)

// LogSink writes each search event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("search_id", evt.SearchUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.Int64("products", evt.Products),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageSearchStart:
			fields = append(fields, zap.String("keyword", evt.Keyword), zap.Int64("sites", evt.Sites))
		case progress.StageSiteDone:
			fields = append(fields,
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
				zap.String("outcome", string(evt.Outcome)),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Bool("rendered", evt.Rendered),
			)
		default:
			fields = append(fields, zap.Int64("sites", evt.Sites))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("search progress", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
