package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/progress"
)

// remainingFilename is the attachment name of a remaining-work export.
const remainingFilename = "remaining_urls.csv"

// eventStream writes progress events as server-sent events and flushes
// after each one. After the first failed write it drops further events and
// reports itself broken.
type eventStream struct {
	mu     sync.Mutex
	w      io.Writer
	rc     *http.ResponseController
	broken bool
	logger *zap.Logger
}

func newEventStream(w http.ResponseWriter, logger *zap.Logger) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &eventStream{w: w, rc: http.NewResponseController(w), logger: logger}
}

// Emit implements progress.Emitter.
func (s *eventStream) Emit(evt progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("encode event failed", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		s.fail(err)
		return
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.fail(err)
	}
}

func (s *eventStream) fail(err error) {
	s.broken = true
	s.logger.Warn("event stream write failed", zap.Error(err))
}

// Alive reports whether the client can still receive events.
func (s *eventStream) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.broken
}

// sendError writes a terminal error frame for failures before the job starts.
func (s *eventStream) sendError(msg string) {
	s.Emit(progress.Event{Type: progress.TypeError, Message: msg})
}

// bulkScrapeCSVStream handles POST /api/scraper/bulk-scrape-csv-stream.
// Every failure, including malformed input, is reported as an error frame.
func (s *Server) bulkScrapeCSVStream(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("route", "bulk-scrape-csv-stream"))
	form, formErr := parseUpload(w, r)
	stream := newEventStream(w, logger)
	if formErr != nil {
		stream.sendError(clientMessage(formErr))
		return
	}
	defer form.File.Close()

	ctx := r.Context()
	if timeout := s.cfg.StreamTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rows, err := ingest.ParseCSV(form.File)
	if err != nil {
		stream.sendError(clientMessage(err))
		return
	}
	fm, err := s.deps.Scraper.ResolveMapping(ctx, form.CollectionID, form.ApplyMapping)
	if err != nil {
		logger.Error("resolve mapping failed", zap.Int64("collection_id", form.CollectionID), zap.Error(err))
		stream.sendError(err.Error())
		return
	}
	jobID, err := s.deps.IDs.NewID()
	if err != nil {
		logger.Error("generate job id failed", zap.Error(err))
		stream.sendError(err.Error())
		return
	}

	emitter := progress.Emitter(stream)
	if s.deps.Hub != nil {
		emitter = progress.Multi(stream, s.deps.Hub)
	}
	job := ingest.Job{
		ID:           jobID,
		CollectionID: form.CollectionID,
		Rows:         rows,
		Mapping:      fm,
		Continue: func() bool {
			return ctx.Err() == nil && stream.Alive()
		},
	}
	summary := s.deps.Orchestrator.Run(ctx, job, emitter)
	logger.Info("stream finished",
		zap.String("job_id", summary.JobID),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
		zap.Bool("blocked", summary.Blocked),
		zap.Bool("cancelled", summary.Cancelled),
	)
}

// downloadRemaining handles GET /api/scraper/download-remaining-csv/{token}.
// A token is honored once.
func (s *Server) downloadRemaining(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	csvText, err := s.deps.Exports.Take(token)
	if err != nil {
		if errors.Is(err, export.ErrNotFound) {
			writeError(w, http.StatusNotFound, "다운로드 토큰이 만료되었거나 존재하지 않습니다.")
			return
		}
		s.logger.Error("take export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load export")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, remainingFilename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, csvText); err != nil {
		s.logger.Warn("write export failed", zap.Error(err))
	}
}
