package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorIsTimeout(t *testing.T) {
	t.Parallel()

	timeout := &Error{URL: "https://a", Timeout: true, Err: context.DeadlineExceeded}
	failure := &Error{URL: "https://a", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	require.ErrorIs(t, timeout, ErrRenderTimeout)
	require.ErrorIs(t, timeout, context.DeadlineExceeded)
	require.NotErrorIs(t, failure, ErrRenderTimeout)
	require.ErrorIs(t, fmt.Errorf("scrape: %w", timeout), ErrRenderTimeout)
	require.Equal(t, "timeout", Kind(timeout))
	require.Equal(t, "failure", Kind(failure))
	require.Empty(t, Kind(nil))
	require.Contains(t, timeout.Error(), "timed out")
}

func TestClassifyDistinguishesCallerCancel(t *testing.T) {
	t.Parallel()

	live := context.Background()
	err := classify(live, "https://a", fmt.Errorf("chromedp run: %w", context.DeadlineExceeded))
	require.ErrorIs(t, err, ErrRenderTimeout)

	done, cancel := context.WithCancel(context.Background())
	cancel()
	err = classify(done, "https://a", context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrRenderTimeout)
}

func TestNewHeadlessValidation(t *testing.T) {
	t.Parallel()

	_, err := NewHeadless(HeadlessConfig{MaxParallel: -1})
	require.Error(t, err)

	h, err := NewHeadless(HeadlessConfig{MaxParallel: 2})
	require.NoError(t, err)
	defer h.Close()
	require.Equal(t, 2, cap(h.limiter))
}

func TestHeadlessNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	h := &Headless{}
	require.Equal(t, 60*time.Second, h.navTimeout())
	h.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, h.navTimeout())
}

func TestHeadlessAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	h := &Headless{limiter: make(chan struct{}, 1)}
	require.NoError(t, h.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.acquire(ctx), context.Canceled)

	h.release()
	require.NoError(t, h.acquire(context.Background()))
}

func TestStaticRenderFollowsRedirect(t *testing.T) {
	t.Parallel()

	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/book", http.StatusFound)
	})
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(`<html><head><title>Book</title></head><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewStatic(StaticConfig{UserAgent: "ingest-test", Timeout: 2 * time.Second})
	page, err := s.Render(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/old", page.RequestedURL)
	require.Equal(t, srv.URL+"/book", page.FinalURL)
	require.Contains(t, page.HTML, "<title>Book</title>")
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "ingest-test", gotUA)

	again, err := s.Render(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, page.FinalURL, again.FinalURL)
}

func TestStaticRenderErrors(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewStatic(StaticConfig{Timeout: 100 * time.Millisecond})

	_, err := s.Render(context.Background(), srv.URL+"/broken")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.False(t, rerr.Timeout)
	require.Contains(t, err.Error(), "status 500")

	_, err = s.Render(context.Background(), srv.URL+"/slow")
	require.ErrorIs(t, err, ErrRenderTimeout)
}

type fakeRenderer struct {
	page Page
	err  error
}

func (f fakeRenderer) Render(_ context.Context, url string) (Page, error) {
	if f.err != nil {
		return Page{}, f.err
	}
	p := f.page
	p.RequestedURL = url
	return p, nil
}

type recordingWaiter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (w *recordingWaiter) Wait(_ context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = append(w.urls, url)
	return w.err
}

func TestPacedWaitsBeforeRender(t *testing.T) {
	t.Parallel()

	waiter := &recordingWaiter{}
	p := NewPaced(fakeRenderer{page: Page{FinalURL: "https://final", HTML: "<html>"}}, waiter, nil)
	page, err := p.Render(context.Background(), "https://a.example/1")
	require.NoError(t, err)
	require.Equal(t, "https://final", page.FinalURL)
	require.Equal(t, []string{"https://a.example/1"}, waiter.urls)

	waiter.err = errors.New("rate limit wait: context canceled")
	_, err = p.Render(context.Background(), "https://a.example/2")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "https://a.example/2", rerr.URL)
}

func TestPacedPassesErrorsThrough(t *testing.T) {
	t.Parallel()

	inner := &Error{URL: "u", Timeout: true, Err: context.DeadlineExceeded}
	p := NewPaced(fakeRenderer{err: inner}, nil, nil)
	_, err := p.Render(context.Background(), "u")
	require.ErrorIs(t, err, ErrRenderTimeout)
}
