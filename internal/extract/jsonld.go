package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

// applyJSONLD reads every application/ld+json block. Blocks that fail to
// decode or are not objects are skipped.
func applyJSONLD(doc *goquery.Document, md *catalog.Metadata) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		data, ok := decodeObject(s.Text())
		if !ok {
			return
		}
		switch data["@type"] {
		case "Book":
			applyBook(data, md)
		case "Product":
			applyProduct(data, md)
		}
	})
}

func decodeObject(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func applyBook(data map[string]any, md *catalog.Metadata) {
	md.Set("title", titleFrom(data, md))
	if v, ok := nameOrString(data["author"]); ok {
		md.Set("author", v)
	}
	if v, ok := nameOrString(data["publisher"]); ok {
		md.Set("publisher", v)
	}
	md.Set("isbn", catalog.Scalar(data["isbn"]))
	md.Set("date_published", catalog.Scalar(data["datePublished"]))
	applyOffers(data, md)
}

func applyProduct(data map[string]any, md *catalog.Metadata) {
	md.Set("title", titleFrom(data, md))
	if v, ok := data["description"]; ok {
		md.Set("description", catalog.Scalar(v))
	} else {
		existing, _ := md.Get("description")
		md.Set("description", existing)
	}
	applyOffers(data, md)
}

// titleFrom returns data["name"] when the key is present, even if null, and
// the current title otherwise.
func titleFrom(data map[string]any, md *catalog.Metadata) any {
	if v, ok := data["name"]; ok {
		return catalog.Scalar(v)
	}
	existing, _ := md.Get("title")
	return existing
}

func applyOffers(data map[string]any, md *catalog.Metadata) {
	offers, ok := data["offers"].(map[string]any)
	if !ok {
		return
	}
	md.Set("price", catalog.Scalar(offers["price"]))
}

// nameOrString reads schema.org Person/Organization values given either as an
// object with a name or as plain text.
func nameOrString(v any) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return catalog.Scalar(x["name"]), true
	case string:
		return x, true
	default:
		return nil, false
	}
}
