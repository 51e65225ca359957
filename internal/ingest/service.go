package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
)

// Service covers the single-URL operations.
type Service struct {
	scraper     Scraper
	items       catalog.ItemStore
	collections catalog.CollectionStore
}

// NewService builds a Service.
func NewService(scraper Scraper, items catalog.ItemStore, collections catalog.CollectionStore) *Service {
	return &Service{scraper: scraper, items: items, collections: collections}
}

// ScrapeURL scrapes url and, when applyMapping is set, applies the
// collection's mapping. An unknown collection leaves the metadata unmapped.
func (s *Service) ScrapeURL(ctx context.Context, url string, collectionID int64, applyMapping bool) (catalog.Metadata, error) {
	md, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return catalog.Metadata{}, err
	}
	if !applyMapping {
		return md, nil
	}
	fm, err := s.collections.GetFieldMapping(ctx, collectionID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return md, nil
	case err != nil:
		return catalog.Metadata{}, fmt.Errorf("load field mapping: %w", err)
	}
	return mapping.ApplyConfig(md, fm), nil
}

// ScrapeAndCreate scrapes url and stores the metadata as is.
func (s *Service) ScrapeAndCreate(ctx context.Context, url string, collectionID int64) (catalog.Item, error) {
	md, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return catalog.Item{}, err
	}
	item, err := s.items.CreateItem(context.WithoutCancel(ctx), collectionID, md)
	if err != nil {
		return catalog.Item{}, &PersistenceError{Err: err}
	}
	return item, nil
}

// ResolveMapping loads the mapping a batch should use. With apply unset it
// returns nil without touching the store. An unknown collection also yields
// nil; the rows then fail individually when their items are written.
func (s *Service) ResolveMapping(ctx context.Context, collectionID int64, apply bool) (*catalog.FieldMapping, error) {
	if !apply {
		return nil, nil
	}
	fm, err := s.collections.GetFieldMapping(ctx, collectionID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load field mapping for collection %d: %w", collectionID, err)
	}
	return fm, nil
}
