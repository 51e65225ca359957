package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

const archiveTimeout = 30 * time.Second

// Archiver stores the HTML of a page that failed the title check.
type Archiver interface {
	Archive(ctx context.Context, page render.Page) (string, error)
}

// Scraper renders a URL and extracts its metadata.
type Scraper struct {
	renderer  render.Renderer
	extractor *Extractor
	archiver  Archiver
	logger    *zap.Logger
}

// NewScraper wires a renderer to an extractor. archiver may be nil.
func NewScraper(renderer render.Renderer, extractor *Extractor, archiver Archiver, logger *zap.Logger) (*Scraper, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = NewExtractor(DefaultRegistry(), logger)
	}
	return &Scraper{
		renderer:  renderer,
		extractor: extractor,
		archiver:  archiver,
		logger:    logger.Named("scraper"),
	}, nil
}

// Scrape returns the metadata of rawURL with source_url set to rawURL. Pages
// without a non-blank title fail with an error matching ErrTitleNotFound.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (catalog.Metadata, error) {
	page, err := s.renderer.Render(ctx, rawURL)
	if err != nil {
		return catalog.Metadata{}, err
	}
	if page.RequestedURL == "" {
		page.RequestedURL = rawURL
	}

	md, err := s.extractor.Extract(page)
	if err != nil {
		return catalog.Metadata{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	md.Set("source_url", rawURL)

	if !hasTitle(md) {
		s.archive(ctx, page)
		return catalog.Metadata{}, &TitleNotFoundError{URL: rawURL}
	}
	return md, nil
}

func (s *Scraper) archive(ctx context.Context, page render.Page) {
	if s.archiver == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	location, err := s.archiver.Archive(actx, page)
	if err != nil {
		s.logger.Warn("archive blocked page failed", zap.String("url", page.RequestedURL), zap.Error(err))
		return
	}
	s.logger.Info("archived blocked page",
		zap.String("url", page.RequestedURL),
		zap.String("final_url", page.FinalURL),
		zap.String("location", location),
	)
}
