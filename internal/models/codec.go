package models

import (
	"fmt"
	"time"
)

// SchemaError reports a malformed document at the store boundary. Decoding
// fails fast here instead of defaulting bad fields deep inside handlers.
type SchemaError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s/%s: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

// docReader accumulates the first schema violation while pulling typed
// fields out of a raw document map.
type docReader struct {
	collection string
	id         string
	data       map[string]interface{}
	err        error
}

func newDocReader(collection, id string, data map[string]interface{}) *docReader {
	return &docReader{collection: collection, id: id, data: data}
}

func (r *docReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &SchemaError{Collection: r.collection, ID: r.id, Field: field, Reason: reason}
	}
}

func (r *docReader) str(field string) string {
	v, ok := r.data[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
	return s
}

func (r *docReader) requiredStr(field string) string {
	s := r.str(field)
	if r.err == nil && s == "" {
		r.fail(field, "is required")
	}
	return s
}

func (r *docReader) intVal(field string) int {
	v, ok := r.data[field]
	if !ok || v == nil {
		return 0
	}
	f, ok := asFloat(v)
	if !ok {
		r.fail(field, fmt.Sprintf("expected number, got %T", v))
		return 0
	}
	return int(f)
}

func (r *docReader) floatVal(field string) float64 {
	v, ok := r.data[field]
	if !ok || v == nil {
		return 0
	}
	f, ok := asFloat(v)
	if !ok {
		r.fail(field, fmt.Sprintf("expected number, got %T", v))
		return 0
	}
	return f
}

func (r *docReader) boolVal(field string) bool {
	v, ok := r.data[field]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(field, fmt.Sprintf("expected bool, got %T", v))
		return false
	}
	return b
}

func (r *docReader) timeVal(field string) time.Time {
	v, ok := r.data[field]
	if !ok || v == nil {
		return time.Time{}
	}
	t, ok := v.(time.Time)
	if !ok {
		r.fail(field, fmt.Sprintf("expected timestamp, got %T", v))
		return time.Time{}
	}
	return t
}

func (r *docReader) requiredTime(field string) time.Time {
	t := r.timeVal(field)
	if r.err == nil && t.IsZero() {
		r.fail(field, "is required")
	}
	return t
}

func (r *docReader) timePtr(field string) *time.Time {
	t := r.timeVal(field)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *docReader) floatMap(field string) map[string]float64 {
	v, ok := r.data[field]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		r.fail(field, fmt.Sprintf("expected map, got %T", v))
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, nv := range raw {
		f, ok := asFloat(nv)
		if !ok {
			r.fail(field, fmt.Sprintf("sub-field %q expected number, got %T", k, nv))
			return nil
		}
		out[k] = f
	}
	return out
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
