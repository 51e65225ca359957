package render

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Promoter decides whether a statically fetched page needs a browser.
type Promoter interface {
	ShouldPromote(page Page) bool
}

// Auto tries a cheap static fetch first and re-renders in full only when the
// fetch failed or the promoter asks for it.
type Auto struct {
	light    Renderer
	full     Renderer
	promoter Promoter
	logger   *zap.Logger
}

// NewAuto wires the two renderers. A nil promoter promotes only on fetch errors.
func NewAuto(light, full Renderer, promoter Promoter, logger *zap.Logger) (*Auto, error) {
	if light == nil || full == nil {
		return nil, errors.New("light and full renderers are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auto{light: light, full: full, promoter: promoter, logger: logger.Named("auto")}, nil
}

// Render implements Renderer.
func (a *Auto) Render(ctx context.Context, url string) (Page, error) {
	page, err := a.light.Render(ctx, url)
	switch {
	case err != nil && ctx.Err() != nil:
		return Page{}, err
	case err != nil:
		a.logger.Debug("static fetch failed, promoting", zap.String("url", url), zap.Error(err))
	case a.promoter != nil && a.promoter.ShouldPromote(page):
		a.logger.Debug("promoting to headless", zap.String("url", url), zap.Int("bytes", len(page.HTML)))
	default:
		return page, nil
	}
	return a.full.Render(ctx, url)
}
