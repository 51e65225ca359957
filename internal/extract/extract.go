package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

// ErrTitleNotFound matches pages that rendered without a usable title.
var ErrTitleNotFound = errors.New("title not found")

const titleNotFoundMessage = "페이지에서 제목을 찾을 수 없습니다. 페이지 로딩이 실패했거나 차단되었을 수 있습니다."

// TitleNotFoundError carries the URL whose page had no title.
type TitleNotFoundError struct {
	URL string
}

func (e *TitleNotFoundError) Error() string {
	return titleNotFoundMessage
}

// Is lets errors.Is(err, ErrTitleNotFound) match.
func (e *TitleNotFoundError) Is(target error) bool {
	return target == ErrTitleNotFound
}

// Extractor applies the generic strategies and then the matching site adapter.
type Extractor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExtractor builds an Extractor. A nil registry disables site adapters.
func NewExtractor(registry *Registry, logger *zap.Logger) *Extractor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{registry: registry, logger: logger.Named("extract")}
}

// Extract reads metadata from page.HTML. It does not check for a title.
func (e *Extractor) Extract(page render.Page) (catalog.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return catalog.Metadata{}, fmt.Errorf("parse html: %w", err)
	}

	var md catalog.Metadata
	applyOpenGraph(doc, &md)
	applyTwitter(doc, &md)
	applyMetaDescription(doc, &md)
	applyTitle(doc, &md)
	applyJSONLD(doc, &md)

	if adapter, ok := e.registry.Lookup(pageHost(page)); ok {
		var out catalog.Metadata
		e.runAdapter(adapter, doc, page, md.Clone(), &out)
		md.Merge(out)
	}
	return md, nil
}

// runAdapter never fails: errors and panics are logged and whatever the adapter
// produced before failing is kept.
func (e *Extractor) runAdapter(adapter Adapter, doc *goquery.Document, page render.Page, current catalog.Metadata, out *catalog.Metadata) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("site adapter panicked",
				zap.String("adapter", adapter.Name()),
				zap.String("url", page.FinalURL),
				zap.Any("panic", r),
			)
			metrics.ObserveAdapterFailure(adapter.Name())
		}
	}()

	if err := adapter.Extract(doc, page, current, out); err != nil {
		e.logger.Warn("site adapter failed",
			zap.String("adapter", adapter.Name()),
			zap.String("url", page.FinalURL),
			zap.Error(err),
		)
		metrics.ObserveAdapterFailure(adapter.Name())
	}
}

func pageHost(page render.Page) string {
	raw := page.FinalURL
	if raw == "" {
		raw = page.RequestedURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// hasTitle reports whether md carries a non-blank title.
func hasTitle(md catalog.Metadata) bool {
	v, ok := md.Get("title")
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	if !isString {
		return fmt.Sprint(v) != ""
	}
	return strings.TrimSpace(s) != ""
}
