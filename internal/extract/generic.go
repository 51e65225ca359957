package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

type metaTag struct {
	attr string
	name string
	key  string
}

var openGraphTags = []metaTag{
	{"property", "og:title", "title"},
	{"property", "og:description", "description"},
	{"property", "og:image", "image"},
	{"property", "og:type", "type"},
}

var twitterTags = []metaTag{
	{"name", "twitter:title", "title"},
	{"name", "twitter:description", "description"},
	{"name", "twitter:image", "image"},
}

// metaContent returns the content of the first matching meta tag. Later tags
// with the same name are not consulted.
func metaContent(doc *goquery.Document, attr, name string) string {
	sel := doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == name
	}).First()
	content, _ := sel.Attr("content")
	return content
}

func applyOpenGraph(doc *goquery.Document, md *catalog.Metadata) {
	for _, tag := range openGraphTags {
		if content := metaContent(doc, tag.attr, tag.name); content != "" {
			md.Set(tag.key, content)
		}
	}
}

func applyTwitter(doc *goquery.Document, md *catalog.Metadata) {
	for _, tag := range twitterTags {
		if md.Has(tag.key) {
			continue
		}
		if content := metaContent(doc, tag.attr, tag.name); content != "" {
			md.Set(tag.key, content)
		}
	}
}

func applyMetaDescription(doc *goquery.Document, md *catalog.Metadata) {
	if md.Has("description") {
		return
	}
	if content := metaContent(doc, "name", "description"); content != "" {
		md.Set("description", content)
	}
}

// applyTitle falls back to <title>. An empty element still sets the key so the
// title check downstream sees a blank title rather than a missing one.
func applyTitle(doc *goquery.Document, md *catalog.Metadata) {
	if md.Has("title") {
		return
	}
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return
	}
	md.Set("title", strings.TrimSpace(sel.Text()))
}
