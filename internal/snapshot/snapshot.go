// Package snapshot archives the HTML of pages that failed extraction so the
// block can be inspected later.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

// DefaultPrefix is the object prefix used when none is configured.
const DefaultPrefix = "snapshots"

const contentType = "text/html; charset=utf-8"

// BlobStore persists one object and returns its location.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Hasher names a snapshot after its content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Archiver writes pages to <prefix>/<host>/<content hash>.html, so a site that
// keeps serving the same block page is stored once.
type Archiver struct {
	store  BlobStore
	hasher Hasher
	prefix string
	logger *zap.Logger
}

// New builds an Archiver. An empty prefix falls back to DefaultPrefix.
func New(store BlobStore, hasher Hasher, prefix string, logger *zap.Logger) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, hasher: hasher, prefix: prefix, logger: logger.Named("snapshot")}, nil
}

// Archive stores page.HTML and returns the backend's location for it.
func (a *Archiver) Archive(ctx context.Context, page render.Page) (string, error) {
	location, err := a.archive(ctx, page)
	metrics.ObserveSnapshot(err == nil)
	return location, err
}

func (a *Archiver) archive(ctx context.Context, page render.Page) (string, error) {
	sum, err := a.hasher.Hash([]byte(page.HTML))
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	source := page.FinalURL
	if source == "" {
		source = page.RequestedURL
	}
	objectPath := path.Join(a.prefix, metrics.SanitizeSite(source), sum+".html")

	location, err := a.store.PutObject(ctx, objectPath, contentType, strings.NewReader(page.HTML))
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", objectPath, err)
	}
	a.logger.Debug("snapshot stored",
		zap.String("url", page.RequestedURL),
		zap.String("path", objectPath),
		zap.Int("bytes", len(page.HTML)),
	)
	return location, nil
}
