package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/collection-ingest/internal/store"
)

// JobStore implements store.JobRepository.
type JobStore struct {
	db    querier
	table string
}

// NewJobStore wraps an existing pool.
func NewJobStore(db querier, tables Tables) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	tables = tables.withDefaults()
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &JobStore{db: db, table: tables.Jobs}, nil
}

// StartJob inserts a running job row.
func (s *JobStore) StartJob(ctx context.Context, jobID string, collectionID int64, total int, startedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, collection_id, total, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`, s.table)
	if _, err := s.db.Exec(ctx, query, jobID, collectionID, total, startedAt, string(store.RunRunning)); err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

// CompleteJob stores the terminal status and counters.
func (s *JobStore) CompleteJob(ctx context.Context, jobID string, finishedAt time.Time, result store.JobResult) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, total = $3, success = $4, failed = $5,
			remaining = $6, error_message = $7
		WHERE id = $8`, s.table)
	tag, err := s.db.Exec(ctx, query,
		finishedAt,
		string(result.Status),
		result.Total,
		result.Success,
		result.Failed,
		result.Remaining,
		result.ErrorMessage,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const jobColumns = `id, collection_id, started_at, finished_at, status, total, success, failed, remaining, error_message`

// GetJob retrieves a single job run by its ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (store.JobRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, jobColumns, s.table)
	run, err := scanJob(s.db.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.JobRun{}, store.ErrNotFound
		}
		return store.JobRun{}, fmt.Errorf("get job run: %w", err)
	}
	return run, nil
}

// ListJobs returns job runs newest first.
func (s *JobStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]store.JobRun, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::bigint IS NULL OR collection_id = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4`, jobColumns, s.table)
	rows, err := s.db.Query(ctx, query, status, filter.CollectionID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	var runs []store.JobRun
	for rows.Next() {
		run, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}
	return runs, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

func scanJob(row pgx.Row) (store.JobRun, error) {
	var (
		run    store.JobRun
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.CollectionID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Total,
		&run.Success,
		&run.Failed,
		&run.Remaining,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.JobRun{}, err
	}
	run.Status = store.JobRunStatus(status)
	return run, nil
}
