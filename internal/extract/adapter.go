package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

// Adapter refines metadata for one site. Extract receives a copy of the
// fields gathered so far and sets the fields it wants to change on out. A
// non-nil error or a panic is logged by the Extractor, and whatever was set on
// out is still merged.
type Adapter interface {
	Name() string
	Match(host string) bool
	Extract(doc *goquery.Document, page render.Page, current catalog.Metadata, out *catalog.Metadata) error
}

// Registry holds adapters in priority order.
type Registry struct {
	adapters []Adapter
}

// NewRegistry returns a registry that consults adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{}
	for _, a := range adapters {
		if a != nil {
			r.adapters = append(r.adapters, a)
		}
	}
	return r
}

// DefaultRegistry returns the built-in bookstore adapters.
func DefaultRegistry() *Registry {
	return NewRegistry(Kyobo{}, Aladin{})
}

// Lookup returns the first adapter matching host.
func (r *Registry) Lookup(host string) (Adapter, bool) {
	if r == nil || host == "" {
		return nil, false
	}
	for _, a := range r.adapters {
		if a.Match(host) {
			return a, true
		}
	}
	return nil, false
}

// Names lists the registered adapters.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

var (
	pageCountPattern = regexp.MustCompile(`(\d+)\s*쪽`)
	isbn13Pattern    = regexp.MustCompile(`ISBN[:\s]*(\d{13})`)
	isbn10Pattern    = regexp.MustCompile(`ISBN[:\s]*(\d{10})`)
	nonDigitPattern  = regexp.MustCompile(`[^0-9]`)
)

// firstText returns the trimmed text of the first element matching selector.
func firstText(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findISBN prefers a 13-digit ISBN and falls back to a 10-digit one.
func findISBN(text string) (string, bool) {
	if m := isbn13Pattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := isbn10Pattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// parsePrice keeps only the digits of text. ok is false when none remain.
func parsePrice(text string) (price int, ok bool, err error) {
	digits := nonDigitPattern.ReplaceAllString(text, "")
	if digits == "" {
		return 0, false, nil
	}
	price, err = strconv.Atoi(digits)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

// setPageCount writes page_count and its older alias pages from the first
// "N쪽" in the raw HTML.
func setPageCount(html string, md *catalog.Metadata) error {
	m := pageCountPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return err
	}
	md.Set("page_count", n)
	md.Set("pages", n)
	return nil
}
