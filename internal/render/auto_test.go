package render

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingRenderer struct {
	calls atomic.Int32
	next  Renderer
}

func (c *countingRenderer) Render(ctx context.Context, url string) (Page, error) {
	c.calls.Add(1)
	return c.next.Render(ctx, url)
}

type promoteIf func(Page) bool

func (f promoteIf) ShouldPromote(p Page) bool { return f(p) }

func emptyBody(p Page) bool { return strings.TrimSpace(p.HTML) == "" }

func TestAutoKeepsStaticPage(t *testing.T) {
	t.Parallel()

	light := &countingRenderer{next: fakeRenderer{page: Page{HTML: "<title>ok</title>"}}}
	full := &countingRenderer{next: fakeRenderer{page: Page{HTML: "full"}}}
	a, err := NewAuto(light, full, promoteIf(emptyBody), nil)
	require.NoError(t, err)

	page, err := a.Render(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "<title>ok</title>", page.HTML)
	require.EqualValues(t, 1, light.calls.Load())
	require.Zero(t, full.calls.Load())
}

func TestAutoPromotes(t *testing.T) {
	t.Parallel()

	full := &countingRenderer{next: fakeRenderer{page: Page{HTML: "rendered"}}}

	a, err := NewAuto(fakeRenderer{page: Page{HTML: ""}}, full, promoteIf(emptyBody), nil)
	require.NoError(t, err)
	page, err := a.Render(context.Background(), "https://example.com/spa")
	require.NoError(t, err)
	require.Equal(t, "rendered", page.HTML)
	require.Equal(t, "https://example.com/spa", page.RequestedURL)

	a, err = NewAuto(fakeRenderer{err: errors.New("status 403")}, full, nil, nil)
	require.NoError(t, err)
	_, err = a.Render(context.Background(), "https://example.com/guarded")
	require.NoError(t, err)
	require.EqualValues(t, 2, full.calls.Load())
}

func TestAutoStopsWhenCallerGone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	full := &countingRenderer{next: fakeRenderer{page: Page{HTML: "rendered"}}}
	a, err := NewAuto(fakeRenderer{err: context.Canceled}, full, nil, nil)
	require.NoError(t, err)

	_, err = a.Render(ctx, "https://example.com")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, full.calls.Load())
}

func TestNewAutoValidates(t *testing.T) {
	t.Parallel()

	_, err := NewAuto(nil, fakeRenderer{}, nil, nil)
	require.Error(t, err)
	_, err = NewAuto(fakeRenderer{}, nil, nil, nil)
	require.Error(t, err)
}
