package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/collection-ingest/internal/store"
)

// JobStore provides an in-memory store.JobRepository for development and tests.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]store.JobRun
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]store.JobRun)}
}

// StartJob records a running job; repeated starts are ignored.
func (s *JobStore) StartJob(_ context.Context, jobID string, collectionID int64, total int, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[jobID]; exists {
		return nil
	}
	s.jobs[jobID] = store.JobRun{
		ID:           jobID,
		CollectionID: collectionID,
		StartedAt:    startedAt,
		Status:       store.RunRunning,
		Total:        total,
	}
	return nil
}

// CompleteJob stores the terminal status and counters.
func (s *JobStore) CompleteJob(_ context.Context, jobID string, finishedAt time.Time, result store.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	job.FinishedAt = pointerTime(finishedAt)
	job.Status = result.Status
	job.Total = result.Total
	job.Success = result.Success
	job.Failed = result.Failed
	job.Remaining = result.Remaining
	if result.ErrorMessage != nil {
		msg := *result.ErrorMessage
		job.ErrorMessage = &msg
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (store.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.JobRun{}, store.ErrNotFound
	}
	return job, nil
}

// ListJobs returns matching jobs newest first.
func (s *JobStore) ListJobs(_ context.Context, filter store.JobFilter) ([]store.JobRun, error) {
	s.mu.RLock()
	out := make([]store.JobRun, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.CollectionID != nil && job.CollectionID != *filter.CollectionID {
			continue
		}
		out = append(out, job)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
