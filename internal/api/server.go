// Package api exposes the HTTP interface for the ingest service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/auth"
	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/config"
	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/middleware"
	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

// SingleScraper covers the one-URL operations and mapping lookup.
type SingleScraper interface {
	ScrapeURL(ctx context.Context, url string, collectionID int64, applyMapping bool) (catalog.Metadata, error)
	ScrapeAndCreate(ctx context.Context, url string, collectionID int64) (catalog.Item, error)
	ResolveMapping(ctx context.Context, collectionID int64, apply bool) (*catalog.FieldMapping, error)
}

// BatchRunner runs a non-streaming batch.
type BatchRunner interface {
	Run(ctx context.Context, collectionID int64, rows []ingest.Row, fm *catalog.FieldMapping) (ingest.BulkResult, error)
}

// StreamRunner runs a streamed job.
type StreamRunner interface {
	Run(ctx context.Context, job ingest.Job, emitter progress.Emitter) ingest.Summary
}

// ExportTaker hands out a stored export once.
type ExportTaker interface {
	Take(token string) (string, error)
}

// Deps groups the collaborators behind the routes. Hub, Jobs and Ready are optional.
type Deps struct {
	Scraper      SingleScraper
	Batch        BatchRunner
	Orchestrator StreamRunner
	Collections  catalog.CollectionStore
	Exports      ExportTaker
	Jobs         store.JobRepository
	Hub          progress.Emitter
	IDs          catalog.IDGenerator
	Guard        *auth.Guard
	Ready        func(ctx context.Context) error
}

// Server wires HTTP handlers to the ingest components.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Guard == nil {
		deps.Guard = auth.NewGuard(cfg.Auth, logger)
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	jobs := NewJobsHandler(deps.Jobs, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/scraper", func(r chi.Router) {
			// The download token is the capability; browsers follow the link without headers.
			r.With(middleware.Timeout(cfg.RequestTimeout())).
				Get("/download-remaining-csv/{token}", s.downloadRemaining)

			r.Group(func(r chi.Router) {
				r.Use(deps.Guard.RequireOwner)
				r.Post("/bulk-scrape-csv-stream", s.bulkScrapeCSVStream)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(cfg.RequestTimeout()))
					r.Post("/save-mapping", s.saveMapping)
					r.Get("/get-mapping/{collection_id}", s.getMapping)
					r.Delete("/delete-mapping/{collection_id}", s.deleteMapping)
					r.Post("/scrape-url", s.scrapeURL)
					r.Post("/scrape-and-create", s.scrapeAndCreate)
					r.Post("/bulk-scrape", s.bulkScrape)
					r.Post("/bulk-scrape-csv", s.bulkScrapeCSV)
				})
			})
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Use(deps.Guard.RequireOwner)
			r.Use(middleware.Timeout(cfg.RequestTimeout()))
			r.Get("/", jobs.ListJobs)
			r.Get("/{job_id}", jobs.GetJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest), errors.Is(err, ingest.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, export.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the text shown to the caller for err. Input errors
// carry a ready-made reason.
func clientMessage(err error) string {
	var inputErr *ingest.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Reason
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
