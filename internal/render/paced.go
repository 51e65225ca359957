package render

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/metrics"
)

// Waiter blocks until a request to url may proceed.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Paced applies per-site pacing and records render metrics around another Renderer.
type Paced struct {
	next   Renderer
	waiter Waiter
	logger *zap.Logger
}

// NewPaced wraps next. A nil waiter disables pacing.
func NewPaced(next Renderer, waiter Waiter, logger *zap.Logger) *Paced {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paced{next: next, waiter: waiter, logger: logger.Named("render")}
}

// Render waits for the site's turn, then delegates.
func (p *Paced) Render(ctx context.Context, url string) (Page, error) {
	if p.waiter != nil {
		if err := p.waiter.Wait(ctx, url); err != nil {
			return Page{}, &Error{URL: url, Err: err}
		}
	}
	start := time.Now()
	page, err := p.next.Render(ctx, url)
	elapsed := time.Since(start)
	metrics.ObserveRender(url, Kind(err), elapsed)
	if err != nil {
		p.logger.Debug("render failed", zap.String("url", url), zap.Duration("elapsed", elapsed), zap.Error(err))
		return Page{}, err
	}
	p.logger.Debug("rendered",
		zap.String("url", url),
		zap.String("final_url", page.FinalURL),
		zap.Int("status", page.StatusCode),
		zap.Duration("elapsed", elapsed),
	)
	return page, nil
}
