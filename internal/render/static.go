package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig controls the colly-backed renderer.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Static fetches the raw document without executing scripts.
type Static struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
}

// NewStatic builds a Static renderer with a shared pooled transport.
func NewStatic(cfg StaticConfig) *Static {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Static{cfg: cfg, baseCollector: c}
}

// Render performs one GET and returns the body and post-redirect URL.
func (s *Static) Render(ctx context.Context, url string) (Page, error) {
	var (
		page     Page
		fetchErr error
	)
	start := time.Now()
	collector := s.baseCollector.Clone()
	collector.Context = ctx
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		page = Page{
			RequestedURL: url,
			FinalURL:     r.Request.URL.String(),
			HTML:         string(r.Body),
			StatusCode:   r.StatusCode,
			Duration:     time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			return Page{}, &Error{URL: url, Timeout: true, Err: err}
		}
		return Page{}, classify(ctx, url, err)
	}
	return page, nil
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
