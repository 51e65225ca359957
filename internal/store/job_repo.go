// Package store declares interfaces for persisting ingest job history.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("job run not found")

// JobRunStatus mirrors the ingest_jobs status column.
type JobRunStatus string

// Job run statuses persisted in ingest_jobs.status.
const (
	RunRunning JobRunStatus = "running"
	RunSuccess JobRunStatus = "success"
	RunBlocked JobRunStatus = "blocked"
	RunError   JobRunStatus = "error"
)

// JobRun models one bulk ingest request.
type JobRun struct {
	ID           string
	CollectionID int64
	StartedAt    time.Time
	// FinishedAt is nil until the run reaches a terminal status.
	FinishedAt *time.Time
	Status     JobRunStatus
	Total      int
	Success    int
	Failed     int
	// Remaining counts rows handed to the export after a block.
	Remaining    int
	ErrorMessage *string
}

// JobResult carries the final counters for CompleteJob.
type JobResult struct {
	Status       JobRunStatus
	Total        int
	Success      int
	Failed       int
	Remaining    int
	ErrorMessage *string
}

// JobRepository persists ingest job history.
type JobRepository interface {
	// StartJob records a running job. Repeated calls for the same ID are no-ops.
	StartJob(ctx context.Context, jobID string, collectionID int64, total int, startedAt time.Time) error
	// CompleteJob stores the terminal status and counters.
	CompleteJob(ctx context.Context, jobID string, finishedAt time.Time, result JobResult) error
	// GetJob loads a single run or returns ErrNotFound.
	GetJob(ctx context.Context, jobID string) (JobRun, error)
	// ListJobs returns runs newest first, filtered by optional status and collection.
	ListJobs(ctx context.Context, filter JobFilter) ([]JobRun, error)
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status       *JobRunStatus
	CollectionID *int64
	Limit        int
	Offset       int
}

// ParseStatus maps user input onto a JobRunStatus.
func ParseStatus(input string) (JobRunStatus, error) {
	switch input {
	case "running":
		return RunRunning, nil
	case "success":
		return RunSuccess, nil
	case "blocked":
		return RunBlocked, nil
	case "error", "failed":
		return RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}
