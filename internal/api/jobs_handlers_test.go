package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/collection-ingest/internal/id/uuid"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

func seedJobs(t *testing.T, repo store.JobRepository) []string {
	t.Helper()
	ctx := context.Background()
	ids := uuid.New()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	var out []string
	for i, col := range []int64{7, 7, 9} {
		id, err := ids.NewID()
		require.NoError(t, err)
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.StartJob(ctx, id, col, 3, started))
		out = append(out, id)
	}
	require.NoError(t, repo.CompleteJob(ctx, out[0], base.Add(30*time.Second), store.JobResult{
		Status: store.RunSuccess, Total: 3, Success: 3,
	}))
	require.NoError(t, repo.CompleteJob(ctx, out[1], base.Add(90*time.Second), store.JobResult{
		Status: store.RunBlocked, Total: 3, Success: 1, Remaining: 2,
	}))
	return out
}

func TestJobsHandlerListJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := seedJobs(t, f.jobs)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decodeBody(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 3)
	require.Equal(t, ids[2], jobs[0].(map[string]any)["job_id"])

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?status=blocked", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs = decodeBody(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 1)
	blocked := jobs[0].(map[string]any)
	require.Equal(t, ids[1], blocked["job_id"])
	require.EqualValues(t, 2, blocked["remaining"])
	require.NotNil(t, blocked["finished_at"])

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?collection_id=7&limit=1&offset=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs = decodeBody(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 1)
	require.Equal(t, ids[0], jobs[0].(map[string]any)["job_id"])
}

func TestJobsHandlerRejectsBadFilters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, query := range []string{"limit=0", "limit=x", "offset=-1", "status=paused", "collection_id=zero"} {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?"+query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestJobsHandlerGetJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := seedJobs(t, f.jobs)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+ids[0], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeBody(t, rec)["job"].(map[string]any)
	require.Equal(t, "success", job["status"])
	require.EqualValues(t, 3, job["success"])

	missing, err := uuid.New().NewID()
	require.NoError(t, err)
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+missing, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsHandlerWithoutRepository(t *testing.T) {
	t.Parallel()

	h := NewJobsHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
