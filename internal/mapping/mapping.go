// Package mapping renames and filters scraped metadata according to a
// collection's field mapping configuration.
package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

// Apply returns a copy of md with keys renamed per mapping. Keys mapped to an
// empty target are dropped. Unmapped keys are kept unless ignoreUnmapped is set.
// When two keys land on the same target the later one in md wins.
func Apply(md catalog.Metadata, mapping map[string]string, ignoreUnmapped bool) catalog.Metadata {
	if len(mapping) == 0 {
		return md.Clone()
	}
	var out catalog.Metadata
	md.Range(func(key string, value any) bool {
		target, mapped := mapping[key]
		switch {
		case mapped && target != "":
			out.Set(target, value)
		case mapped:
		case !ignoreUnmapped:
			out.Set(key, value)
		}
		return true
	})
	return out
}

// ApplyConfig applies fm to md; a nil or empty config returns md unchanged.
func ApplyConfig(md catalog.Metadata, fm *catalog.FieldMapping) catalog.Metadata {
	if fm.Empty() {
		return md.Clone()
	}
	return Apply(md, fm.Mapping, fm.IgnoreUnmapped)
}

type wrapped struct {
	Mapping        map[string]string `json:"mapping"`
	IgnoreUnmapped bool              `json:"ignore_unmapped"`
}

// Decode parses a stored mapping configuration. Both the wrapped form
// {"mapping":{...},"ignore_unmapped":bool} and the legacy bare object are
// accepted; the legacy form never ignores unmapped keys. Empty input and JSON
// null decode to nil.
func Decode(raw []byte) (*catalog.FieldMapping, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode field mapping: %w", err)
	}
	if inner, ok := fields["mapping"]; ok && isObject(inner) {
		var w wrapped
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode field mapping: %w", err)
		}
		return &catalog.FieldMapping{Mapping: nonNil(w.Mapping), IgnoreUnmapped: w.IgnoreUnmapped}, nil
	}
	legacy := make(map[string]string, len(fields))
	for key, value := range fields {
		var target string
		if err := json.Unmarshal(value, &target); err != nil {
			return nil, fmt.Errorf("decode legacy field mapping %q: %w", key, err)
		}
		legacy[key] = target
	}
	return &catalog.FieldMapping{Mapping: legacy}, nil
}

// Encode serializes fm in the wrapped form.
func Encode(fm catalog.FieldMapping) ([]byte, error) {
	raw, err := json.Marshal(wrapped{Mapping: nonNil(fm.Mapping), IgnoreUnmapped: fm.IgnoreUnmapped})
	if err != nil {
		return nil, fmt.Errorf("encode field mapping: %w", err)
	}
	return raw, nil
}

// View is the JSON shape returned to API callers.
type View struct {
	Mapping        map[string]string `json:"mapping"`
	IgnoreUnmapped bool              `json:"ignore_unmapped"`
}

// ToView converts fm for display; nil yields nil.
func ToView(fm *catalog.FieldMapping) *View {
	if fm == nil {
		return nil
	}
	return &View{Mapping: nonNil(fm.Mapping), IgnoreUnmapped: fm.IgnoreUnmapped}
}

// ErrBlankSource is returned by Validate for a mapping whose source key is blank.
var ErrBlankSource = errors.New("mapping source key must not be blank")

// Validate rejects mappings with blank source keys.
func Validate(m map[string]string) error {
	for key := range m {
		if strings.TrimSpace(key) == "" {
			return ErrBlankSource
		}
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
