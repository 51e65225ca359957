package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
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
			zap.String("job_id", evt.JobID),
			zap.String("type", string(evt.Type)),
			zap.Int("total", evt.Total),
			zap.Int("success", evt.Success),
			zap.Int("failed", evt.Failed),
		}
		if evt.Index > 0 {
			fields = append(fields, zap.Int("row", evt.Index))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Message != "" {
			fields = append(fields, zap.String("message", evt.Message))
		}
		if evt.Item != nil {
			fields = append(fields, zap.String("item_id", evt.Item.ID))
		}
		switch evt.Type {
		case progress.TypeBlocked, progress.TypeError:
			s.logger.Warn("ingest event", fields...)
		case progress.TypeProgress, progress.TypeErrorItem:
			s.logger.Debug("ingest event", fields...)
		default:
			if evt.Elapsed > 0 {
				fields = append(fields, zap.Duration("elapsed", evt.Elapsed))
			}
			s.logger.Info("ingest event", fields...)
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
