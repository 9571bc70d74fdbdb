package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"backplane/internal/core/record"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator gives locale-aware ordering for the string fallback comparisons.
// collate.Collator keeps internal scratch buffers, so compares take a lock
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und)
)

func collateCompare(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Options are the read-path knobs shared by every backend
type Options struct {
	// Where filters combine with logical AND; no OR/NOT composition
	Where []Filter
	// OrderBy clauses apply as a stable multi-key sort
	OrderBy []Order
	// Limit truncates the result when > 0
	Limit int
	// Offset slices from the start of the filtered+sorted list when > 0
	Offset int
}

// Apply evaluates opts over a snapshot of records and returns the
// filtered/sorted/paginated subset. The input slice is never mutated
func Apply(recs []record.Record, opts Options) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		if MatchesAll(r, opts.Where) {
			out = append(out, r)
		}
	}

	if len(opts.OrderBy) > 0 {
		sortTotal(out, opts.OrderBy)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []record.Record{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// sortTotal sorts like SortBy, then breaks every remaining tie by id
// ascending. Snapshots arrive in arbitrary order, so read paths that window
// the result (offsets, cursors) need a total order to land on the same
// positions from one call to the next
func sortTotal(recs []record.Record, orders []Order) {
	sort.Slice(recs, func(i, j int) bool {
		if c := compareRecords(recs[i], recs[j], orders); c != 0 {
			return c < 0
		}
		return recs[i].ID() < recs[j].ID()
	})
}

// MatchesAll reports whether r passes every filter (logical AND)
func MatchesAll(r record.Record, filters []Filter) bool {
	for _, f := range filters {
		if !Matches(r, f) {
			return false
		}
	}
	return true
}

// Matches evaluates a single filter against r.
// A missing or null field value satisfies eq only when the filter value is
// null, satisfies neq against any non-null value, and fails every other
// operator
func Matches(r record.Record, f Filter) bool {
	v, ok := r.Get(f.Field)
	if !ok || v == nil {
		switch f.Op {
		case OpEq:
			return f.Value == nil
		case OpNeq:
			return f.Value != nil
		default:
			return false
		}
	}

	switch f.Op {
	case OpEq:
		return equalValues(v, f.Value)
	case OpNeq:
		return !equalValues(v, f.Value)
	case OpGt:
		return compareOrdered(v, f.Value) > 0
	case OpGte:
		return compareOrdered(v, f.Value) >= 0
	case OpLt:
		return compareOrdered(v, f.Value) < 0
	case OpLte:
		return compareOrdered(v, f.Value) <= 0
	case OpIn:
		return memberOf(f.Value, v)
	case OpContains:
		if s, ok := v.(string); ok {
			sub, ok := f.Value.(string)
			return ok && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
		}
		return memberOf(v, f.Value)
	case OpStartsWith:
		s, ok1 := v.(string)
		p, ok2 := f.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(strings.ToLower(s), strings.ToLower(p))
	case OpEndsWith:
		s, ok1 := v.(string)
		p, ok2 := f.Value.(string)
		return ok1 && ok2 && strings.HasSuffix(strings.ToLower(s), strings.ToLower(p))
	}
	return false
}

// SortBy stable-sorts recs in place by the given clauses.
// Null/missing values sort last regardless of direction; desc negates the
// computed comparison, it does not reverse null placement
func SortBy(recs []record.Record, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return compareRecords(recs[i], recs[j], orders) < 0
	})
}

func compareRecords(a, b record.Record, orders []Order) int {
	for _, o := range orders {
		va, okA := a.Get(o.Field)
		vb, okB := b.Get(o.Field)
		nilA := !okA || va == nil
		nilB := !okB || vb == nil

		switch {
		case nilA && nilB:
			continue
		case nilA:
			return 1
		case nilB:
			return -1
		}

		c := compareOrdered(va, vb)
		if o.Dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareOrdered compares natively when both sides are numbers or both are
// time instants, otherwise falls back to locale-aware comparison of the
// values' string forms. The fallback is a documented quirk, not a crash
func compareOrdered(a, b any) int {
	if fa, okA := asNumber(a); okA {
		if fb, okB := asNumber(b); okB {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, okA := asTime(a); okA {
		if tb, okB := asTime(b); okB {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	return collateCompare(stringForm(a), stringForm(b))
}

// equalValues is strict equality with numeric and time normalization so that
// int(3) and float64(3) from decoded JSON compare equal
func equalValues(a, b any) bool {
	if fa, okA := asNumber(a); okA {
		if fb, okB := asNumber(b); okB {
			return fa == fb
		}
		return false
	}
	if ta, okA := asTime(a); okA {
		if tb, okB := asTime(b); okB {
			return ta.Equal(tb)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// memberOf reports whether needle is an element of the array value arr
func memberOf(arr, needle any) bool {
	rv := reflect.ValueOf(arr)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}

func stringForm(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if t, ok := asTime(v); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
