package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// HeadlessConfig controls the headless renderer.
type HeadlessConfig struct {
	// MaxParallel bounds open tabs; zero means unbounded.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Headless renders pages in headless Chrome, one fresh tab per call.
type Headless struct {
	cfg         HeadlessConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadless starts a chromedp exec allocator. The browser process launches on
// the first Render.
func NewHeadless(cfg HeadlessConfig) (*Headless, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Headless{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (h *Headless) Close() {
	h.allocCancel()
}

// Render opens a tab, navigates, waits for the DOM, and captures the HTML. The
// tab is closed on every return path.
func (h *Headless) Render(ctx context.Context, url string) (Page, error) {
	if err := h.acquire(ctx); err != nil {
		return Page{}, &Error{URL: url, Err: err}
	}
	defer h.release()

	tabCtx, tabCancel := chromedp.NewContext(h.allocator)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	navCtx, cancel := context.WithTimeout(tabCtx, h.navTimeout())
	defer cancel()

	status := &documentStatus{}
	chromedp.ListenTarget(navCtx, status.capture)

	start := time.Now()
	html, finalURL, err := h.run(navCtx, url)
	if err != nil {
		return Page{}, classify(ctx, url, err)
	}
	if finalURL == "" {
		finalURL = url
	}
	return Page{
		RequestedURL: url,
		FinalURL:     finalURL,
		HTML:         html,
		StatusCode:   status.get(),
		Duration:     time.Since(start),
	}, nil
}

func (h *Headless) run(ctx context.Context, url string) (string, string, error) {
	var html, finalURL string
	actions := []chromedp.Action{
		h.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (h *Headless) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if h.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(h.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (h *Headless) acquire(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	select {
	case h.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (h *Headless) release() {
	if h.limiter == nil {
		return
	}
	select {
	case <-h.limiter:
	default:
	}
}

func (h *Headless) navTimeout() time.Duration {
	if h.cfg.NavigationTimeout > 0 {
		return h.cfg.NavigationTimeout
	}
	return DefaultNavigationTimeout
}

// documentStatus records the HTTP status of the top-level document.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (d *documentStatus) capture(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
