package backend

import (
	"context"
	"testing"

	"backplane/internal/backend/memory"
	"backplane/internal/core/record"
	"backplane/internal/platform/config"
	kit "backplane/internal/platform/testkit"
)

func TestOpenDefaultsToMemory(t *testing.T) {
	t.Setenv("BACKPLANE_BACKEND", "")
	ctx := context.Background()

	b, err := Open(ctx, config.New())
	kit.MustNoErr(t, err)
	t.Cleanup(func() { _ = b.Close(ctx) })

	if _, ok := b.(*memory.Engine); !ok {
		t.Fatalf("default backend should be the memory engine, got %T", b)
	}

	// default entity set is live
	_, err = b.Database().Create(ctx, "post", record.Record{"title": "x"})
	kit.MustNoErr(t, err)
}

func TestOpenHonorsEntityTypes(t *testing.T) {
	t.Setenv("BACKPLANE_BACKEND", "memory")
	t.Setenv("BACKPLANE_ENTITY_TYPES", "widget, gadget")
	ctx := context.Background()

	b, err := Open(ctx, config.New())
	kit.MustNoErr(t, err)
	t.Cleanup(func() { _ = b.Close(ctx) })

	_, err = b.Database().Create(ctx, "widget", record.Record{"name": "w"})
	kit.MustNoErr(t, err)
	if _, err = b.Database().Create(ctx, "post", record.Record{}); err == nil {
		t.Fatalf("configured entity set should replace the defaults")
	}
}

func TestOpenRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("BACKPLANE_BACKEND", "martian")
	kit.MustPanic(t, func() {
		_, _ = Open(context.Background(), config.New())
	})
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	kit.MustDeepEqual(t, splitList("a, b ,c"), []string{"a", "b", "c"})
	if splitList("") != nil {
		t.Fatalf("empty list should be nil")
	}
	kit.MustDeepEqual(t, splitList(" , ,x"), []string{"x"})
}
