package strings

import "testing"

func TestIfEmpty(t *testing.T) {
	t.Parallel()

	def := []int{1, 2}
	if got := IfEmpty(nil, def); len(got) != 2 {
		t.Fatalf("expected default slice, got %v", got)
	}
	in := []int{9}
	if got := IfEmpty(in, def); len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected input slice back, got %v", got)
	}
}

func TestMustString(t *testing.T) {
	t.Parallel()

	if got := MustString("ok", "field"); got != "ok" {
		t.Fatalf("got %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on blank input")
		}
	}()
	MustString("   ", "field")
}

func TestMustPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"auth", "/auth"},
		{"/auth", "/auth"},
		{" /auth/ ", "/auth"},
		{"//records//", "/records"},
	}
	for _, c := range cases {
		if got := MustPrefix(c.in); got != c.want {
			t.Fatalf("MustPrefix(%q) = %q want %q", c.in, got, c.want)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on root path")
		}
	}()
	MustPrefix(" / ")
}

func TestEmptyToNilAndDeref(t *testing.T) {
	t.Parallel()

	if EmptyToNil("  ") != "" {
		t.Fatal("whitespace should collapse to empty")
	}
	if EmptyToNil("x") != "x" {
		t.Fatal("content should pass through")
	}
	s := "v"
	if Deref(&s) != "v" || Deref(nil) != "" {
		t.Fatal("Deref mismatch")
	}
}
