package record

import (
	"testing"
	"time"

	kit "backplane/internal/platform/testkit"
)

func TestNewIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 36 {
			t.Fatalf("id %q is not uuid-shaped", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestWellKnownAccessors(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Record{FieldID: "r1", FieldCreatedAt: now, FieldUpdatedAt: now.Add(time.Minute)}
	if r.ID() != "r1" {
		t.Fatalf("ID() = %q", r.ID())
	}
	if !r.CreatedAt().Equal(now) || !r.UpdatedAt().Equal(now.Add(time.Minute)) {
		t.Fatalf("timestamp accessors wrong")
	}

	// wrong types degrade to zero values, never panic
	bad := Record{FieldID: 7, FieldCreatedAt: "yesterday"}
	if bad.ID() != "" || !bad.CreatedAt().IsZero() {
		t.Fatalf("accessors should zero out on type mismatch")
	}
}

func TestGetDotPath(t *testing.T) {
	r := Record{
		"title": "hello",
		"author": map[string]any{
			"name": "ada",
			"org":  map[string]any{"city": "london"},
		},
		"nested": Record{"k": "v"},
	}

	cases := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"title", "hello", true},
		{"author.name", "ada", true},
		{"author.org.city", "london", true},
		{"nested.k", "v", true},
		{"author.missing", nil, false},
		{"title.sub", nil, false}, // scalar mid-path
		{"missing", nil, false},
	}
	for _, c := range cases {
		got, ok := r.Get(c.path)
		if ok != c.wantOK || (ok && got != c.want) {
			t.Fatalf("Get(%q) = (%v, %v), want (%v, %v)", c.path, got, ok, c.want, c.wantOK)
		}
	}

	if _, ok := Record(nil).Get("x"); ok {
		t.Fatalf("nil record Get should miss")
	}
}

func TestCloneIsolation(t *testing.T) {
	r := Record{
		"id":   "r1",
		"tags": []any{"a", "b"},
		"meta": map[string]any{"likes": 3},
	}
	c := r.Clone()
	kit.MustDeepEqual(t, c, r)

	c["id"] = "changed"
	c["tags"].([]any)[0] = "z"
	c["meta"].(map[string]any)["likes"] = 99

	if r["id"] != "r1" || r["tags"].([]any)[0] != "a" || r["meta"].(map[string]any)["likes"] != 3 {
		t.Fatalf("mutating the clone reached the original: %#v", r)
	}

	if Record(nil).Clone() != nil {
		t.Fatalf("Clone(nil) should be nil")
	}
}

func TestCloneSlice(t *testing.T) {
	rs := []Record{{"id": "a"}, {"id": "b", "nested": Record{"x": 1}}}
	cs := CloneSlice(rs)
	kit.MustDeepEqual(t, cs, rs)
	cs[1]["nested"].(Record)["x"] = 2
	if rs[1]["nested"].(Record)["x"] != 1 {
		t.Fatalf("CloneSlice shared nested state")
	}
	if CloneSlice(nil) != nil {
		t.Fatalf("CloneSlice(nil) should be nil")
	}
}

func TestMergeShallow(t *testing.T) {
	r := Record{"id": "r1", "a": 1, "obj": map[string]any{"keep": true, "x": 1}}
	patch := Record{"a": 2, "obj": map[string]any{"x": 9}, "new": "v"}
	r.Merge(patch)

	if r["a"] != 2 || r["new"] != "v" {
		t.Fatalf("Merge did not lay patch fields: %#v", r)
	}
	// nested objects replace wholesale
	obj := r["obj"].(map[string]any)
	if _, ok := obj["keep"]; ok {
		t.Fatalf("Merge should replace nested objects, not merge them")
	}

	// patch values are copied in, later patch mutation must not reach r
	patch["obj"].(map[string]any)["x"] = 100
	if r["obj"].(map[string]any)["x"] != 9 {
		t.Fatalf("Merge shared patch state")
	}
}
