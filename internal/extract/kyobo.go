package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/render"
)

var (
	kyoboDatePattern      = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`)
	kyoboImageISBNPattern = regexp.MustCompile(`/pdt/(\d{13})\.`)
)

// Kyobo reads Kyobo Book Centre product pages.
type Kyobo struct{}

// Name implements Adapter.
func (Kyobo) Name() string { return "kyobo" }

// Match implements Adapter.
func (Kyobo) Match(host string) bool {
	return strings.Contains(host, "kyobobook.co.kr")
}

// Extract implements Adapter.
func (Kyobo) Extract(doc *goquery.Document, page render.Page, current catalog.Metadata, md *catalog.Metadata) error {
	var errs []error

	if title, ok := firstText(doc, ".prod_title"); ok {
		md.Set("title", title)
	}
	if author, ok := firstText(doc, ".author a"); ok {
		md.Set("author", author)
	}
	if text, ok := firstText(doc, ".prod_info_text.publish_date"); ok {
		parts := strings.Split(text, "·")
		switch len(parts) {
		case 2:
			md.Set("publisher", strings.TrimSpace(parts[0]))
			md.Set("publication_date", kyoboDate(strings.TrimSpace(parts[1])))
		case 1:
			md.Set("publication_date", kyoboDate(strings.TrimSpace(parts[0])))
		}
	}
	if text, ok := firstText(doc, ".sell_price .val"); ok {
		price, found, err := parsePrice(text)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("parse price %q: %w", text, err))
		case found:
			md.Set("price", price)
		}
	}

	if m := kyoboImageISBNPattern.FindStringSubmatch(current.String("image")); m != nil {
		md.Set("isbn", m[1])
	}
	if !md.Has("isbn") {
		if info := doc.Find(".info_detail_wrap").First(); info.Length() > 0 {
			if isbn, ok := findISBN(info.Text()); ok {
				md.Set("isbn", isbn)
			}
		}
	}

	if text, ok := firstText(doc, ".intro_bottom"); ok {
		md.Set("description", collapseSpace(text))
	}
	if err := setPageCount(page.HTML, md); err != nil {
		errs = append(errs, fmt.Errorf("parse page count: %w", err))
	}

	items := doc.Find(".breadcrumb_list").First().Find(".breadcrumb_item[data-id]")
	if items.Length() >= 2 {
		link := items.Eq(1).Find("a").First()
		if link.Length() > 0 {
			if category := strings.TrimSpace(link.Text()); category != "" {
				md.Set("category", category)
			}
		}
	}

	return errors.Join(errs...)
}

// kyoboDate converts "2021년 10월 5일" to 2021-10-05 and keeps other text as is.
func kyoboDate(text string) string {
	m := kyoboDatePattern.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return fmt.Sprintf("%s-%s-%s", m[1], zeroPad(m[2]), zeroPad(m[3]))
}

func zeroPad(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
