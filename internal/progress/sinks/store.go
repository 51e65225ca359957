package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

// StoreSink records job history through a store.JobRepository.
type StoreSink struct {
	repo   store.JobRepository
	logger *zap.Logger

	remaining map[string]int
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.JobRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger, remaining: make(map[string]int)}
}

// Consume forwards start and terminal events to the repository and returns any
// repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		switch {
		case evt.Type == progress.TypeStart:
			if err := s.repo.StartJob(ctx, evt.JobID, evt.CollectionID, evt.Total, evt.TS); err != nil {
				return fmt.Errorf("start job: %w", err)
			}
		case evt.Type == progress.TypeBlocked:
			s.remaining[evt.JobID] = evt.RemainingCount
		case evt.Terminal():
			if err := s.complete(ctx, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, evt progress.Event) error {
	result := store.JobResult{
		Status:  store.RunSuccess,
		Total:   evt.Total,
		Success: evt.Success,
		Failed:  evt.Failed,
	}
	switch {
	case evt.Type == progress.TypeError:
		result.Status = store.RunError
		msg := evt.Message
		result.ErrorMessage = &msg
	case evt.Blocked:
		result.Status = store.RunBlocked
		result.Remaining = s.remaining[evt.JobID]
	}
	delete(s.remaining, evt.JobID)
	if err := s.repo.CompleteJob(ctx, evt.JobID, evt.TS, result); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	s.logger.Debug("job run recorded", zap.String("job_id", evt.JobID), zap.String("status", string(result.Status)))
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
