package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/clock/system"
	"github.com/JakeFAU/collection-ingest/internal/config"
	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/extract"
	"github.com/JakeFAU/collection-ingest/internal/id/uuid"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/storage/memory"
)

const booksCollection int64 = 7

type scrapeResult struct {
	md  catalog.Metadata
	err error
}

// stubScraper answers from a table; unknown URLs get a title built from the URL.
type stubScraper struct {
	mu      sync.Mutex
	results map[string]scrapeResult
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (catalog.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Metadata{}, err
	}
	s.mu.Lock()
	res, ok := s.results[url]
	s.mu.Unlock()
	if !ok {
		return catalog.NewMetadata("title", "Title of "+url, "source_url", url), nil
	}
	return res.md.Clone(), res.err
}

func (s *stubScraper) set(url string, md catalog.Metadata, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[string]scrapeResult)
	}
	s.results[url] = scrapeResult{md: md, err: err}
}

func (s *stubScraper) block(url string) {
	s.set(url, catalog.Metadata{}, &extract.TitleNotFoundError{URL: url})
}

// recordingEmitter captures what reaches the observability hub.
type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) types() []progress.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Type, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

type apiFixture struct {
	server  *Server
	catalog *memory.CatalogStore
	scraper *stubScraper
	exports *export.Store
	jobs    *memory.JobStore
	hub     *recordingEmitter
}

func newFixture(t *testing.T, mutate ...func(*config.Config, *Deps)) *apiFixture {
	t.Helper()

	clock := system.NewFrozen(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	ids := uuid.New()
	cat := memory.NewCatalogStore(clock, ids)
	cat.AddCollection(catalog.Collection{ID: booksCollection, Name: "books"})

	scraper := &stubScraper{}
	exports := export.NewStore(ids)
	jobs := memory.NewJobStore()
	hub := &recordingEmitter{}

	deps := Deps{
		Scraper:      ingest.NewService(scraper, cat, cat),
		Batch:        ingest.NewQuickBatch(scraper, cat, ingest.QuickBatchConfig{MaxURLs: 5}, zap.NewNop()),
		Orchestrator: ingest.NewOrchestrator(scraper, cat, exports, clock, zap.NewNop()),
		Collections:  cat,
		Exports:      exports,
		Jobs:         jobs,
		Hub:          hub,
		IDs:          ids,
	}
	cfg := config.Config{Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5}}
	for _, fn := range mutate {
		fn(&cfg, &deps)
	}
	return &apiFixture{
		server:  NewServer(deps, cfg, zap.NewNop()),
		catalog: cat,
		scraper: scraper,
		exports: exports,
		jobs:    jobs,
		hub:     hub,
	}
}

func (f *apiFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// sseFrames splits an event-stream body into decoded data frames.
func sseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		require.True(t, ok, "unexpected line %q", line)
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, sc.Err())
	return frames
}

func frameTypes(frames []map[string]any) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f["type"].(string))
	}
	return out
}
