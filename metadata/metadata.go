// Package metadata provides scalar document metadata, equality filters and a
// Roaring-Bitmap-backed inverted index over index slots.
//
// Metadata values are restricted to strings, booleans and numbers. Numbers
// are normalized to float64 so that values survive a JSON round trip
// unchanged.
package metadata

import (
	"fmt"
	"strconv"
)

// Metadata holds scalar-valued, string-keyed document attributes.
type Metadata map[string]any

// Validate checks that every value is a supported scalar type.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		default:
			return &ErrUnsupportedValue{Key: k, Value: v}
		}
	}
	return nil
}

// Normalize returns a copy of m with all numeric values converted to float64.
// Nil input yields an empty, non-nil map.
func (m Metadata) Normalize() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

// Clone returns a shallow copy of m (values are scalars).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ErrUnsupportedValue indicates a metadata value of a non-scalar type.
type ErrUnsupportedValue struct {
	Key   string
	Value any
}

func (e *ErrUnsupportedValue) Error() string {
	return fmt.Sprintf("metadata: unsupported value type %T for key %q", e.Value, e.Key)
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return v
	}
}

// term renders a key/value pair as a canonical posting-list term.
func term(key string, value any) string {
	switch v := normalizeValue(value).(type) {
	case string:
		return key + "\x00s\x00" + v
	case bool:
		return key + "\x00b\x00" + strconv.FormatBool(v)
	case float64:
		return key + "\x00n\x00" + strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return key + "\x00?\x00" + fmt.Sprint(v)
	}
}
