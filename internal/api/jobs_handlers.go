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

	"github.com/JakeFAU/collection-ingest/internal/store"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
	jobsTimeout     = 3 * time.Second
)

// JobsHandler exposes read-only ingest job history.
type JobsHandler struct {
	repo    store.JobRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewJobsHandler wires the repository and logger.
func NewJobsHandler(repo store.JobRepository, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{
		repo:    repo,
		timeout: jobsTimeout,
		logger:  logger.Named("jobs"),
	}
}

// ListJobs handles GET /api/jobs?status=&collection_id=&limit=&offset=. It
// returns {"jobs": [...]} on success, 400 for invalid filters, 503 when no
// repository is configured, or 500 if the repository call fails.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "job repository unavailable")
		return
	}
	filter, err := parseJobFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	jobs, err := h.repo.ListJobs(ctx, filter)
	if err != nil {
		h.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobDTOs(jobs)})
}

// GetJob handles GET /api/jobs/{job_id}. It returns {"job": {...}}, 400 for a
// malformed id, or 404 when the job is unknown.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "job repository unavailable")
		return
	}
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	job, err := h.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(job)})
}

func parseJobID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "job_id")
	if raw == "" {
		return "", errors.New("job_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.New("invalid job_id")
	}
	return id.String(), nil
}

func parseJobFilter(r *http.Request) (store.JobFilter, error) {
	q := r.URL.Query()
	filter := store.JobFilter{Limit: defaultJobLimit}
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return store.JobFilter{}, errors.New("invalid limit")
		}
		filter.Limit = min(val, maxJobLimit)
	}
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return store.JobFilter{}, errors.New("invalid offset")
		}
		filter.Offset = val
	}
	if statusParam := strings.ToLower(strings.TrimSpace(q.Get("status"))); statusParam != "" {
		status, err := store.ParseStatus(statusParam)
		if err != nil {
			return store.JobFilter{}, err
		}
		filter.Status = &status
	}
	if colStr := q.Get("collection_id"); colStr != "" {
		val, err := strconv.ParseInt(colStr, 10, 64)
		if err != nil || val <= 0 {
			return store.JobFilter{}, errors.New("invalid collection_id")
		}
		filter.CollectionID = &val
	}
	return filter, nil
}

func toJobDTOs(in []store.JobRun) []jobDTO {
	out := make([]jobDTO, 0, len(in))
	for _, job := range in {
		out = append(out, toJobDTO(job))
	}
	return out
}

func toJobDTO(job store.JobRun) jobDTO {
	return jobDTO{
		JobID:        job.ID,
		CollectionID: job.CollectionID,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Status:       string(job.Status),
		Total:        job.Total,
		Success:      job.Success,
		Failed:       job.Failed,
		Remaining:    job.Remaining,
		Error:        job.ErrorMessage,
	}
}

type jobDTO struct {
	JobID        string     `json:"job_id"`
	CollectionID int64      `json:"collection_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Success      int        `json:"success"`
	Failed       int        `json:"failed"`
	Remaining    int        `json:"remaining"`
	Error        *string    `json:"error,omitempty"`
}
