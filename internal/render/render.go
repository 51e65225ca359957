// Package render loads a URL and returns the page's HTML and final address.
//
// Headless drives one Chrome tab per call through chromedp. Static fetches the
// document with colly and runs no JavaScript. Paced wraps either one with per-site
// rate limiting and render metrics.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultNavigationTimeout bounds a single navigation.
const DefaultNavigationTimeout = 60 * time.Second

// ErrRenderTimeout matches errors for navigations that exceeded the bound.
var ErrRenderTimeout = errors.New("render timeout")

// Page is one rendered document.
type Page struct {
	RequestedURL string
	FinalURL     string
	HTML         string
	StatusCode   int
	Duration     time.Duration
}

// Renderer loads a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// Error reports a failed render. Timeout is set when the navigation bound was hit.
type Error struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render %s: timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRenderTimeout) match timeouts.
func (e *Error) Is(target error) bool {
	return target == ErrRenderTimeout && e.Timeout
}

// Kind labels an error for metrics: "timeout", "failure", or "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRenderTimeout):
		return "timeout"
	default:
		return "failure"
	}
}

// classify wraps err. A deadline hit on the navigation context counts as a
// timeout only while the caller's context is still live.
func classify(parent context.Context, url string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
	return &Error{URL: url, Timeout: timeout, Err: err}
}
