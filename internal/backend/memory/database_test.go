package memory

import (
	"context"
	"testing"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
	"backplane/internal/platform/clock"
	perr "backplane/internal/platform/errors"
	kit "backplane/internal/platform/testkit"
)

func newTestDatabase(t *testing.T, latency time.Duration) (*Database, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	store := NewStore(nil, nil, clk, &recorder{})
	return NewDatabase(store, latency), clk
}

func TestDatabaseGetMissingReadsNilNil(t *testing.T) {
	d, _ := newTestDatabase(t, 0)
	ctx := context.Background()

	got, err := d.Get(ctx, "post", "ghost")
	kit.MustNoErr(t, err)
	if got != nil {
		t.Fatalf("missing id should read (nil, nil), got %#v", got)
	}
}

func TestDatabaseCRUDRoundTrip(t *testing.T) {
	d, _ := newTestDatabase(t, 0)
	ctx := context.Background()

	created, err := d.Create(ctx, "post", record.Record{"title": "a"})
	kit.MustNoErr(t, err)

	got, err := d.Get(ctx, "post", created.ID())
	kit.MustNoErr(t, err)
	kit.MustDeepEqual(t, got, created)

	updated, err := d.Update(ctx, "post", created.ID(), record.Record{"title": "b"})
	kit.MustNoErr(t, err)
	if updated["title"] != "b" {
		t.Fatalf("update did not apply: %#v", updated)
	}

	kit.MustNoErr(t, d.Delete(ctx, "post", created.ID()))
	got, err = d.Get(ctx, "post", created.ID())
	kit.MustNoErr(t, err)
	if got != nil {
		t.Fatalf("deleted record still readable")
	}

	_, err = d.Create(ctx, "martian", record.Record{})
	kit.MustCode(t, err, perr.ErrorCodeNotFound)
}

func TestDatabaseListAndQuery(t *testing.T) {
	d, clk := newTestDatabase(t, 0)
	ctx := context.Background()

	for _, title := range []string{"alpha", "beta", "gamma"} {
		clk.Advance(time.Second)
		_, err := d.Create(ctx, "post", record.Record{"title": title, "draft": title == "beta"})
		kit.MustNoErr(t, err)
	}

	all, err := d.List(ctx, "post", query.Options{})
	kit.MustNoErr(t, err)
	if len(all) != 3 {
		t.Fatalf("want 3, got %d", len(all))
	}

	drafts, err := d.Query(ctx, "post", query.Filter{Field: "draft", Op: query.OpEq, Value: true})
	kit.MustNoErr(t, err)
	if len(drafts) != 1 || drafts[0]["title"] != "beta" {
		t.Fatalf("filter wrong: %+v", drafts)
	}

	sorted, err := d.List(ctx, "post", query.Options{
		OrderBy: []query.Order{{Field: "title", Dir: query.Desc}},
		Limit:   2,
	})
	kit.MustNoErr(t, err)
	if len(sorted) != 2 || sorted[0]["title"] != "gamma" || sorted[1]["title"] != "beta" {
		t.Fatalf("sort+limit wrong: %+v", sorted)
	}

	none, err := d.List(ctx, "martian", query.Options{})
	kit.MustNoErr(t, err)
	if len(none) != 0 {
		t.Fatalf("unknown entity type should list empty")
	}
}

func TestDatabaseQueryNearby(t *testing.T) {
	d, _ := newTestDatabase(t, 0)
	ctx := context.Background()

	// Berlin, Potsdam (~27km away), Munich (~500km), and one without coords
	seed := []record.Record{
		{"title": "berlin", "latitude": 52.52, "longitude": 13.405},
		{"title": "potsdam", "latitude": 52.3906, "longitude": 13.0645},
		{"title": "munich", "latitude": 48.1351, "longitude": 11.582},
		{"title": "nowhere", "latitude": nil},
	}
	for _, r := range seed {
		_, err := d.Create(ctx, "event", r)
		kit.MustNoErr(t, err)
	}

	near, err := d.QueryNearby(ctx, "event", domain.NearbyOptions{
		Latitude:  52.52,
		Longitude: 13.405,
		RadiusKm:  50,
		Options:   query.Options{OrderBy: []query.Order{{Field: "title", Dir: query.Asc}}},
	})
	kit.MustNoErr(t, err)

	titles := make([]string, 0, len(near))
	for _, r := range near {
		titles = append(titles, r["title"].(string))
	}
	kit.MustDeepEqual(t, titles, []string{"berlin", "potsdam"})
}

func TestDatabasePaginateWalksAllRecordsOnce(t *testing.T) {
	d, clk := newTestDatabase(t, 0)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		clk.Advance(time.Second)
		_, err := d.Create(ctx, "post", record.Record{"n": i})
		kit.MustNoErr(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := d.Paginate(ctx, "post", domain.PageOptions{Cursor: cursor, Limit: 3})
		kit.MustNoErr(t, err)
		pages++
		for _, r := range page.Records {
			if seen[r.ID()] {
				t.Fatalf("record %s returned twice", r.ID())
			}
			seen[r.ID()] = true
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Fatalf("exhausted page should have empty cursor")
			}
			break
		}
		cursor = page.NextCursor
	}

	if len(seen) != 7 || pages != 3 {
		t.Fatalf("walk covered %d records in %d pages", len(seen), pages)
	}
}

func TestDatabasePaginateCoversCreatedAtTies(t *testing.T) {
	d, _ := newTestDatabase(t, 0)
	ctx := context.Background()

	// the clock never advances, so every record shares one createdAt and the
	// default ordering rides entirely on the id tiebreaker
	for i := 0; i < 10; i++ {
		_, err := d.Create(ctx, "post", record.Record{"n": i})
		kit.MustNoErr(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	for rounds := 0; ; rounds++ {
		if rounds > 10 {
			t.Fatalf("pagination did not terminate")
		}
		page, err := d.Paginate(ctx, "post", domain.PageOptions{Cursor: cursor, Limit: 3})
		kit.MustNoErr(t, err)
		for _, r := range page.Records {
			if seen[r.ID()] {
				t.Fatalf("record %s returned twice under tied sort keys", r.ID())
			}
			seen[r.ID()] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 10 {
		t.Fatalf("walk covered %d of 10 records under tied sort keys", len(seen))
	}
}

func TestDatabasePaginateFiltersBeforeWindowing(t *testing.T) {
	d, clk := newTestDatabase(t, 0)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		clk.Advance(time.Second)
		_, err := d.Create(ctx, "post", record.Record{"even": i%2 == 0})
		kit.MustNoErr(t, err)
	}

	page, err := d.Paginate(ctx, "post", domain.PageOptions{
		Limit: 2,
		Where: []query.Filter{{Field: "even", Op: query.OpEq, Value: true}},
	})
	kit.MustNoErr(t, err)
	if len(page.Records) != 2 || !page.HasMore {
		t.Fatalf("filtered page wrong: %+v", page)
	}
	for _, r := range page.Records {
		if r["even"] != true {
			t.Fatalf("filter leaked odd record: %#v", r)
		}
	}
}

func TestDatabaseLatencyHonorsContext(t *testing.T) {
	d, _ := newTestDatabase(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := d.Get(ctx, "post", "x")
	if err == nil {
		t.Fatalf("cancelled context should fail the call")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancellation should not wait out the latency")
	}
}

func TestDatabaseReturnsCopies(t *testing.T) {
	d, _ := newTestDatabase(t, 0)
	ctx := context.Background()

	created, err := d.Create(ctx, "post", record.Record{"title": "orig"})
	kit.MustNoErr(t, err)

	listed, err := d.List(ctx, "post", query.Options{})
	kit.MustNoErr(t, err)
	listed[0]["title"] = "tampered"

	got, err := d.Get(ctx, "post", created.ID())
	kit.MustNoErr(t, err)
	if got["title"] != "orig" {
		t.Fatalf("list result aliased store state")
	}
}
