package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
)

// Default quick-batch limits.
const (
	DefaultQuickBatchConcurrency = 4
	DefaultQuickBatchMaxURLs     = 50
)

// BulkResult is the response of a non-streaming batch.
type BulkResult struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Items   []catalog.ItemRef `json:"items"`
	Errors  []string          `json:"errors"`
}

// QuickBatchConfig bounds a quick batch.
type QuickBatchConfig struct {
	Concurrency int
	MaxURLs     int
}

// QuickBatch scrapes a short list concurrently and persists the results in
// input order. It has no fallback and does not stop on blocks.
type QuickBatch struct {
	scraper Scraper
	items   catalog.ItemStore
	cfg     QuickBatchConfig
	logger  *zap.Logger
}

// NewQuickBatch applies defaults to cfg.
func NewQuickBatch(scraper Scraper, items catalog.ItemStore, cfg QuickBatchConfig, logger *zap.Logger) *QuickBatch {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultQuickBatchConcurrency
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultQuickBatchMaxURLs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuickBatch{scraper: scraper, items: items, cfg: cfg, logger: logger.Named("quickbatch")}
}

type scrapeOutcome struct {
	md  catalog.Metadata
	err error
}

// Run returns an InputError when rows exceeds the configured maximum, and the
// context error when ctx ends before every row was scraped. Nothing is
// persisted in that case.
func (q *QuickBatch) Run(ctx context.Context, collectionID int64, rows []Row, fm *catalog.FieldMapping) (BulkResult, error) {
	if err := validateSize(rows, q.cfg.MaxURLs); err != nil {
		return BulkResult{}, err
	}

	outcomes := make([]scrapeOutcome, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			md, err := q.scraper.Scrape(gctx, row.URL)
			outcomes[i] = scrapeOutcome{md: md, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BulkResult{}, fmt.Errorf("quick batch: %w", err)
	}

	result := BulkResult{Total: len(rows), Items: []catalog.ItemRef{}, Errors: []string{}}
	for i, row := range rows {
		out := outcomes[i]
		if out.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, rowMessage(i, out.err))
			metrics.ObserveRow(metrics.OutcomeFailed)
			q.logger.Warn("scrape failed", zap.Int("row", i+1), zap.String("url", row.URL), zap.Error(out.err))
			continue
		}
		md := out.md
		md.Merge(row.Extra)
		md = mapping.ApplyConfig(md, fm)

		item, err := q.items.CreateItem(context.WithoutCancel(ctx), collectionID, md)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("행 %d 아이템 생성 실패: %v", i+1, err))
			metrics.ObserveRow(metrics.OutcomeFailed)
			q.logger.Warn("persist item failed", zap.Int("row", i+1), zap.String("url", row.URL), zap.Error(err))
			continue
		}
		result.Success++
		result.Items = append(result.Items, item.Ref())
		metrics.ObserveRow(metrics.OutcomeSuccess)
	}
	return result, nil
}
