// Package detector decides when a statically fetched page must be rendered
// again in a headless browser.
package detector

import (
	"strings"

	"github.com/JakeFAU/collection-ingest/internal/render"
)

// DefaultThreshold is the body size below which script-heavy pages are promoted.
const DefaultThreshold = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector. A threshold of zero uses DefaultThreshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"ng-version",
}

// titleMarkers are the head elements the extractor reads a title from. A page
// with none of them is most likely filled in by script.
var titleMarkers = []string{
	"<title",
	"og:title",
	"twitter:title",
	"application/ld+json",
}

// ShouldPromote reports whether page needs a headless render.
func (h *Heuristic) ShouldPromote(page render.Page) bool {
	if page.StatusCode != 0 && page.StatusCode != 200 {
		return false
	}
	body := strings.ToLower(page.HTML)
	if strings.TrimSpace(body) == "" {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	for _, marker := range titleMarkers {
		if strings.Contains(body, marker) {
			return false
		}
	}
	return true
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the lowercased document. An unclosed script runs to the end.
func scriptDensityHigh(lower string) bool {
	if lower == "" {
		return false
	}
	const closeTag = "</script>"
	covered := 0
	rest := lower
	for {
		start := strings.Index(rest, "<script")
		if start == -1 {
			break
		}
		rest = rest[start:]
		end := strings.Index(rest, closeTag)
		if end == -1 {
			covered += len(rest)
			break
		}
		end += len(closeTag)
		covered += end
		rest = rest[end:]
	}
	return covered*100/len(lower) >= 25
}
