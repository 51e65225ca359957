package snapshot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/collection-ingest/internal/hash/sha256"
	"github.com/JakeFAU/collection-ingest/internal/render"
	"github.com/JakeFAU/collection-ingest/internal/storage/memory"
)

type fixedHash struct {
	sum string
	err error
}

func (f fixedHash) Hash([]byte) (string, error) {
	return f.sum, f.err
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, fixedHash{}, "", nil)
	require.Error(t, err)
	_, err = New(memory.NewBlobStore(), nil, "", nil)
	require.Error(t, err)
}

func TestArchiveWritesUnderHost(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a, err := New(store, fixedHash{sum: "abc123"}, "/blocked/", nil)
	require.NoError(t, err)

	location, err := a.Archive(context.Background(), render.Page{
		RequestedURL: "https://short.link/x",
		FinalURL:     "https://Product.Kyobobook.co.kr/detail/1",
		HTML:         "<p>captcha</p>",
	})
	require.NoError(t, err)
	require.Equal(t, "memory://blocked/product.kyobobook.co.kr/abc123.html", location)

	body, ct, ok := store.Object("blocked/product.kyobobook.co.kr/abc123.html")
	require.True(t, ok)
	require.Equal(t, "<p>captcha</p>", string(body))
	require.Equal(t, "text/html; charset=utf-8", ct)
}

func TestArchiveDedupesIdenticalPages(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a, err := New(store, sha256.New(), "", nil)
	require.NoError(t, err)

	for _, u := range []string{"https://example.com/a", "https://example.com/b"} {
		_, err = a.Archive(context.Background(), render.Page{RequestedURL: u, HTML: "blocked"})
		require.NoError(t, err)
	}
	_, err = a.Archive(context.Background(), render.Page{RequestedURL: "https://example.com/c", HTML: "other"})
	require.NoError(t, err)
	require.Len(t, store.Paths(), 2)
}

func TestArchiveDefaultsPrefixAndRequestedURL(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a, err := New(store, fixedHash{sum: "h2"}, "", nil)
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), render.Page{RequestedURL: "https://example.com/a"})
	require.NoError(t, err)
	require.Equal(t, []string{"snapshots/example.com/h2.html"}, store.Paths())
}

func TestArchiveErrors(t *testing.T) {
	t.Parallel()

	a, err := New(failingStore{}, fixedHash{sum: "h"}, "", nil)
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), render.Page{RequestedURL: "https://example.com"})
	require.ErrorContains(t, err, "quota exceeded")

	a, err = New(memory.NewBlobStore(), fixedHash{err: errors.New("digest")}, "", nil)
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), render.Page{RequestedURL: "https://example.com"})
	require.ErrorContains(t, err, "hash snapshot")
}
