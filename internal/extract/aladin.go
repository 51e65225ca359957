package extract

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

var aladinDatePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

var aladinDescriptionSelectors = []string{
	"#divContentTab1",
	".Ere_prod_mconts_T",
	".book_summary_wrap",
}

// Aladin reads Aladin product pages.
type Aladin struct{}

// Name implements Adapter.
func (Aladin) Name() string { return "aladin" }

// Match implements Adapter.
func (Aladin) Match(host string) bool {
	return strings.Contains(host, "aladin.co.kr")
}

// Extract implements Adapter.
func (Aladin) Extract(doc *goquery.Document, page render.Page, _ catalog.Metadata, md *catalog.Metadata) error {
	var errs []error

	if title, ok := firstText(doc, ".prod_title"); ok {
		md.Set("title", title)
	}

	var authors []string
	doc.Find(".Ere_prod_author_box a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		// Role labels such as "(지은이)" are links too.
		if text == "" || strings.Contains(text, "(") {
			return
		}
		authors = append(authors, html.UnescapeString(text))
	})
	if len(authors) > 0 {
		md.Set("author", strings.Join(authors, ", "))
	}

	if publisher, ok := firstText(doc, ".Ere_sub_black a"); ok {
		md.Set("publisher", publisher)
	}

	dateSel := doc.Find(".Ere_sub_gray").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), "출간일")
	}).First()
	if dateSel.Length() > 0 {
		if m := aladinDatePattern.FindStringSubmatch(dateSel.Text()); m != nil {
			md.Set("publication_date", m[1])
		}
	}

	if text, ok := firstText(doc, ".Ere_prod_price .val"); ok {
		price, found, err := parsePrice(text)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("parse price %q: %w", text, err))
		case found:
			md.Set("price", price)
		}
	}

	if isbn, ok := findISBN(page.HTML); ok {
		md.Set("isbn", isbn)
	}

	for _, selector := range aladinDescriptionSelectors {
		text, ok := firstText(doc, selector)
		if !ok || utf8.RuneCountInString(text) <= 20 {
			continue
		}
		md.Set("description", collapseSpace(text))
		break
	}

	if err := setPageCount(page.HTML, md); err != nil {
		errs = append(errs, fmt.Errorf("parse page count: %w", err))
	}

	return errors.Join(errs...)
}
