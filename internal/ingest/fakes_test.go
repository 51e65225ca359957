package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/clock/system"
	"github.com/JakeFAU/collection-ingest/internal/extract"
	"github.com/JakeFAU/collection-ingest/internal/id/uuid"
	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/render"
	"github.com/JakeFAU/collection-ingest/internal/storage/memory"
)

const testCollection int64 = 7

type scrapeResult struct {
	md  catalog.Metadata
	err error
}

// fakeScraper answers from a fixed table. Unknown URLs get a title derived
// from the URL.
type fakeScraper struct {
	results map[string]scrapeResult
	onCall  func(url string)

	mu    sync.Mutex
	calls []string
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (catalog.Metadata, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(url)
	}
	if err := ctx.Err(); err != nil {
		return catalog.Metadata{}, &render.Error{URL: url, Err: err}
	}
	if res, ok := f.results[url]; ok {
		return res.md.Clone(), res.err
	}
	return catalog.NewMetadata("title", "Scraped "+url, "source_url", url), nil
}

func (f *fakeScraper) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func blockedResult(url string) scrapeResult {
	return scrapeResult{err: &extract.TitleNotFoundError{URL: url}}
}

func timeoutResult(url string) scrapeResult {
	return scrapeResult{err: &render.Error{URL: url, Timeout: true, Err: context.DeadlineExceeded}}
}

type failingItems struct{}

func (failingItems) CreateItem(context.Context, int64, catalog.Metadata) (catalog.Item, error) {
	return catalog.Item{}, errors.New("connection refused")
}

type failingExporter struct{}

func (failingExporter) Put(string) (string, error) {
	return "", errors.New("entropy exhausted")
}

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) Types() []progress.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Type, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

func (r *recorder) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

func newItemStore(t *testing.T) *memory.CatalogStore {
	t.Helper()
	store := memory.NewCatalogStore(testClock(), uuid.New())
	store.AddCollection(catalog.Collection{ID: testCollection, Name: "Books"})
	return store
}

func testClock() *system.Frozen {
	return system.NewFrozen(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}
