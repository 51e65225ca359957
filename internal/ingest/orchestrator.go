// Package ingest drives scraping, field mapping and persistence across a list
// of URLs.
//
// Orchestrator is the streaming mode: rows run one at a time, every outcome is
// reported as a progress.Event, generic failures fall back to the row's own CSV
// fields, and a page without a title stops the job and exports the rest.
// QuickBatch is the non-streaming mode for short lists.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/extract"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/progress"
)

const cancelledMessage = "클라이언트 연결이 끊어져 작업이 중단되었습니다."

// Scraper returns the metadata of one URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (catalog.Metadata, error)
}

// Exporter stores a remaining-work CSV and returns its download token.
type Exporter interface {
	Put(csvText string) (string, error)
}

// Job is one streamed ingest.
type Job struct {
	ID           string
	CollectionID int64
	Rows         []Row
	// Mapping is read once before the job starts.
	Mapping *catalog.FieldMapping
	// Continue is consulted before each row. Nil means always continue.
	Continue func() bool
}

// Summary is the final state of a job.
type Summary struct {
	JobID          string
	Total          int
	Success        int
	Failed         int
	Blocked        bool
	BlockedIndex   int
	RemainingCount int
	DownloadToken  string
	Cancelled      bool
	Elapsed        time.Duration
}

// Orchestrator runs jobs sequentially.
type Orchestrator struct {
	scraper Scraper
	items   catalog.ItemStore
	exports Exporter
	clock   catalog.Clock
	logger  *zap.Logger
}

// NewOrchestrator wires the job loop.
func NewOrchestrator(
	scraper Scraper,
	items catalog.ItemStore,
	exports Exporter,
	clock catalog.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		scraper: scraper,
		items:   items,
		exports: exports,
		clock:   clock,
		logger:  logger.Named("orchestrator"),
	}
}

// run carries the counters of one job.
type run struct {
	o       *Orchestrator
	job     Job
	emitter progress.Emitter
	started time.Time
	summary Summary
	logger  *zap.Logger
}

// Run processes job.Rows in order and reports every step to emitter. Events
// for a row are emitted before the next row starts and the terminal event is
// always last. Item writes run detached from ctx so a write already issued
// completes after the caller goes away.
func (o *Orchestrator) Run(ctx context.Context, job Job, emitter progress.Emitter) Summary {
	if emitter == nil {
		emitter = progress.EmitterFunc(func(progress.Event) {})
	}
	r := &run{
		o:       o,
		job:     job,
		emitter: emitter,
		started: o.clock.Now(),
		summary: Summary{JobID: job.ID, Total: len(job.Rows)},
		logger:  o.logger.With(zap.String("job_id", job.ID), zap.Int64("collection_id", job.CollectionID)),
	}
	r.logger.Info("ingest started", zap.Int("total", len(job.Rows)))
	r.emit(progress.Event{Type: progress.TypeStart, Total: len(job.Rows)})

	for i, row := range job.Rows {
		if !r.shouldContinue(ctx) {
			r.cancel(i)
			return r.summary
		}
		md, err := o.scraper.Scrape(ctx, row.URL)
		switch {
		case err == nil:
			r.ingest(ctx, i, row, md)
		case errors.Is(err, extract.ErrTitleNotFound):
			r.block(i, err)
			return r.summary
		case ctx.Err() != nil:
			// The render was cut short by the caller, not by the site.
			r.cancel(i)
			return r.summary
		default:
			r.fallback(ctx, i, row, err)
		}
	}

	r.finish(progress.Event{Type: progress.TypeComplete})
	r.logger.Info("ingest completed",
		zap.Int("success", r.summary.Success),
		zap.Int("failed", r.summary.Failed),
		zap.Duration("elapsed", r.summary.Elapsed),
	)
	return r.summary
}

func (r *run) shouldContinue(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return r.job.Continue == nil || r.job.Continue()
}

func (r *run) ingest(ctx context.Context, i int, row Row, md catalog.Metadata) {
	md.Merge(row.Extra)
	md = mapping.ApplyConfig(md, r.job.Mapping)

	item, err := r.persist(ctx, md)
	if err != nil {
		r.summary.Failed++
		metrics.ObserveRow(metrics.OutcomeFailed)
		r.logger.Warn("persist scraped item failed", zap.Int("row", i+1), zap.String("url", row.URL), zap.Error(err))
		r.emitRow(progress.TypeErrorItem, i, row, rowMessage(i, err), nil)
		return
	}
	r.summary.Success++
	metrics.ObserveRow(metrics.OutcomeSuccess)
	ref := item.Ref()
	r.emitRow(progress.TypeProgress, i, row, "", &ref)
}

// fallback stores what the CSV row itself knows. The row counts as failed
// whether or not the fallback item was created.
func (r *run) fallback(ctx context.Context, i int, row Row, scrapeErr error) {
	r.summary.Failed++
	r.logger.Warn("scrape failed, using row fields",
		zap.Int("row", i+1),
		zap.String("url", row.URL),
		zap.Error(scrapeErr),
	)

	md := mapping.ApplyConfig(row.FallbackMetadata(), r.job.Mapping)
	item, err := r.persist(ctx, md)
	if err != nil {
		metrics.ObserveRow(metrics.OutcomeFailed)
		r.logger.Warn("fallback persist failed", zap.Int("row", i+1), zap.String("url", row.URL), zap.Error(err))
		r.emitRow(progress.TypeErrorItem, i, row, rowMessage(i, scrapeErr), nil)
		return
	}
	metrics.ObserveRow(metrics.OutcomeFallback)
	ref := item.Ref()
	r.emitRow(progress.TypeErrorItem, i, row, rowMessage(i, scrapeErr), &ref)
}

func (r *run) block(i int, cause error) {
	rest := r.job.Rows[i:]
	remaining := make([]export.Remaining, 0, len(rest))
	for _, row := range rest {
		remaining = append(remaining, row.Remaining())
	}
	token := r.export(remaining)
	metrics.ObserveRow(metrics.OutcomeBlocked)

	r.summary.Blocked = true
	r.summary.BlockedIndex = i + 1
	r.summary.RemainingCount = len(remaining)
	r.summary.DownloadToken = token

	row := r.job.Rows[i]
	r.logger.Warn("block detected, stopping job",
		zap.Int("row", i+1),
		zap.String("url", row.URL),
		zap.Int("remaining", len(remaining)),
		zap.Error(cause),
	)
	r.emit(progress.Event{
		Type:           progress.TypeBlocked,
		Index:          i + 1,
		URL:            row.URL,
		Message:        fmt.Sprintf("차단 또는 페이지 로딩 실패 감지 (행 %d). 남은 %d개 URL은 처리되지 않았습니다.", i+1, len(remaining)),
		RemainingCount: len(remaining),
		DownloadToken:  token,
	})
	r.finish(progress.Event{Type: progress.TypeComplete, Blocked: true})
}

// export returns "" when the CSV could not be built or stored; the blocked
// event is still sent so the caller learns where the job stopped.
func (r *run) export(remaining []export.Remaining) string {
	if r.o.exports == nil {
		return ""
	}
	csvText, err := export.BuildCSV(remaining)
	if err != nil {
		r.logger.Error("build remaining csv failed", zap.Error(err))
		return ""
	}
	token, err := r.o.exports.Put(csvText)
	if err != nil {
		r.logger.Error("store remaining csv failed", zap.Error(err))
		return ""
	}
	return token
}

func (r *run) cancel(i int) {
	r.summary.Cancelled = true
	r.logger.Info("ingest cancelled", zap.Int("next_row", i+1))
	r.finish(progress.Event{Type: progress.TypeError, Message: cancelledMessage})
}

func (r *run) persist(ctx context.Context, md catalog.Metadata) (catalog.Item, error) {
	item, err := r.o.items.CreateItem(context.WithoutCancel(ctx), r.job.CollectionID, md)
	if err != nil {
		return catalog.Item{}, &PersistenceError{Err: err}
	}
	return item, nil
}

func (r *run) emitRow(typ progress.Type, i int, row Row, message string, item *catalog.ItemRef) {
	evt := progress.Event{
		Type:     typ,
		Current:  i + 1,
		Progress: progress.Percent(i+1, r.summary.Total),
		Message:  message,
		Item:     item,
		URL:      row.URL,
	}
	if typ == progress.TypeErrorItem {
		evt.Index = i + 1
	}
	r.emit(evt)
}

func (r *run) finish(evt progress.Event) {
	r.summary.Elapsed = r.o.clock.Now().Sub(r.started)
	evt.Elapsed = r.summary.Elapsed
	r.emit(evt)
}

// emit stamps the shared fields and running counters.
func (r *run) emit(evt progress.Event) {
	evt.JobID = r.job.ID
	evt.CollectionID = r.job.CollectionID
	evt.TS = r.o.clock.Now()
	evt.Total = r.summary.Total
	evt.Success = r.summary.Success
	evt.Failed = r.summary.Failed
	r.emitter.Emit(evt)
}

func rowMessage(i int, err error) string {
	return fmt.Sprintf("행 %d: %v", i+1, err)
}
