// Package record defines the generic record shape shared by every backend:
// a field/value mapping with a unique id and implicit createdAt/updatedAt
package record

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known field names present on every record
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Record is a single entity instance. Values are strings, numbers, bools,
// time.Time, nested map[string]any objects, or []any arrays
type Record map[string]any

// NewID returns a collision-resistant record id (UUID v4)
func NewID() string { return uuid.NewString() }

// ID returns the record's id or "" when unset or not a string
func (r Record) ID() string {
	s, _ := r[FieldID].(string)
	return s
}

// CreatedAt returns the record's creation instant or the zero time
func (r Record) CreatedAt() time.Time {
	t, _ := r[FieldCreatedAt].(time.Time)
	return t
}

// UpdatedAt returns the record's last mutation instant or the zero time
func (r Record) UpdatedAt() time.Time {
	t, _ := r[FieldUpdatedAt].(time.Time)
	return t
}

// Get resolves a possibly dot-pathed field ("author.name") against r.
// ok is false when any path segment is missing or not an object
func (r Record) Get(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		v, ok := r[path]
		return v, ok
	}
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Record:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of r so callers can never reach shared state
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneSlice deep-copies every record in rs
func CloneSlice(rs []Record) []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Merge shallowly lays patch fields over r and returns r.
// Nested objects from patch replace, they do not merge
func (r Record) Merge(patch Record) Record {
	for k, v := range patch {
		r[k] = cloneValue(v)
	}
	return r
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		// primitives and time.Time are value types
		return v
	}
}
