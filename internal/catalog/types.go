package catalog

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a collection or item does not exist.
var ErrNotFound = errors.New("not found")

// FieldMapping translates scraped field names into a collection's own vocabulary.
// An empty target drops the source field.
type FieldMapping struct {
	Mapping        map[string]string
	IgnoreUnmapped bool
}

// Empty reports whether the mapping has no entries.
func (f *FieldMapping) Empty() bool {
	return f == nil || len(f.Mapping) == 0
}

// Collection is a user-defined catalog category.
type Collection struct {
	ID           int64
	Name         string
	FieldMapping *FieldMapping
}

// Item is a single catalog record.
type Item struct {
	ID           string    `json:"id"`
	CollectionID int64     `json:"collection_id"`
	Title        string    `json:"title"`
	Metadata     Metadata  `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
}

// ItemRef is the compact view of an item returned to ingestion callers.
type ItemRef struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// Ref returns the compact view of the item.
func (i Item) Ref() ItemRef {
	return ItemRef{ID: i.ID, Metadata: i.Metadata}
}

var titleKeys = []string{"title", "name", "제목", "이름"}

// DeriveTitle picks the display title for an item from its metadata.
func DeriveTitle(md Metadata) string {
	for _, key := range titleKeys {
		if md.Has(key) {
			return md.String(key)
		}
	}
	keys := md.Keys()
	if len(keys) == 0 {
		return "Untitled"
	}
	first, _ := md.Get(keys[0])
	if first == nil || first == "" {
		return "Untitled"
	}
	return fmt.Sprint(first)
}
