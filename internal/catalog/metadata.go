package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata is a flat field→scalar map that remembers insertion order.
// Values are string, int, float64, bool or nil. The zero value is ready to use.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata builds a Metadata from alternating key/value pairs.
func NewMetadata(pairs ...any) Metadata {
	var md Metadata
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		md.Set(key, pairs[i+1])
	}
	return md
}

// Set stores value under key. An existing key keeps its original position.
func (m *Metadata) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// String returns the value for key formatted as text; nil and missing keys yield "".
func (m Metadata) String(key string) string {
	v, ok := m.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Delete removes key.
func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of fields.
func (m Metadata) Len() int {
	return len(m.keys)
}

// Range calls fn for every field in insertion order until fn returns false.
func (m Metadata) Range(fn func(key string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]any, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Merge writes every field of other into m; other wins on collision.
func (m *Metadata) Merge(other Metadata) {
	other.Range(func(k string, v any) bool {
		m.Set(k, v)
		return true
	})
}

// Map returns an unordered copy, mainly for assertions and logging.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, keeping the document's key order.
// Nested objects and arrays are rejected; whole numbers decode as int.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	if tok == nil {
		*m = Metadata{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("metadata must be a JSON object")
	}
	out := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read metadata key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("metadata key must be a string")
		}
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read metadata value for %q: %w", key, err)
		}
		val, err := scalarFromToken(valTok)
		if err != nil {
			return fmt.Errorf("metadata field %q: %w", key, err)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read metadata end: %w", err)
	}
	*m = out
	return nil
}

func scalarFromToken(tok json.Token) (any, error) {
	switch v := tok.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return f, nil
	case json.Delim:
		return nil, errors.New("nested values are not supported")
	default:
		return nil, fmt.Errorf("unsupported token %T", tok)
	}
}

// Scalar normalizes a decoded JSON value for storage in Metadata. Numbers
// become int when whole, objects and arrays are kept as compact JSON text.
func Scalar(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int:
		return x
	case json.Number:
		out, err := scalarFromToken(x)
		if err != nil {
			return x.String()
		}
		return out
	case float64:
		if x == float64(int64(x)) {
			return int(x)
		}
		return x
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}
