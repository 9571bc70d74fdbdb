//go:build integration_pg
// +build integration_pg

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
	"backplane/internal/platform/store"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

type captor struct{ events []domain.ChangeEvent }

func (c *captor) Publish(ev domain.ChangeEvent) { c.events = append(c.events, ev) }

func openDatabase(t *testing.T, ctx context.Context, dsn string) (*Database, *captor) {
	t.Helper()

	st, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2}})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	cap := &captor{}
	d := New(st.PG, Options{
		EntityTypes:   []string{"post", "event"},
		FieldDefaults: map[string]record.Record{"post": {"views": 0}},
		Publisher:     cap,
	})
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// migrate twice must be a no-op
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return d, cap
}

func TestPGDatabase_Integration_CRUD(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	d, cap := openDatabase(t, ctx, dsn)

	created, err := d.Create(ctx, "post", record.Record{"title": "hello", "author": map[string]any{"name": "ada"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID() == "" || created.CreatedAt().IsZero() {
		t.Fatalf("create did not stamp: %#v", created)
	}
	if created["views"] != 0 {
		t.Fatalf("defaults not applied: %#v", created)
	}

	// duplicate id conflicts
	if _, err := d.Create(ctx, "post", record.Record{"id": created.ID()}); err == nil {
		t.Fatalf("duplicate id should conflict")
	}

	// unknown entity type fails the write
	if _, err := d.Create(ctx, "martian", record.Record{}); err == nil {
		t.Fatalf("unknown entity type should fail create")
	}

	got, err := d.Get(ctx, "post", created.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["title"] != "hello" {
		t.Fatalf("get = %#v", got)
	}
	if got.CreatedAt().IsZero() {
		t.Fatalf("createdAt not rehydrated as time: %#v", got["createdAt"])
	}

	// missing id reads (nil, nil)
	missing, err := d.Get(ctx, "post", "ghost")
	if err != nil || missing != nil {
		t.Fatalf("missing get = %#v, %v", missing, err)
	}

	updated, err := d.Update(ctx, "post", created.ID(), record.Record{"title": "hey", "id": "evil"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID() != created.ID() || updated["title"] != "hey" {
		t.Fatalf("update = %#v", updated)
	}
	if _, err := d.Update(ctx, "post", "ghost", record.Record{"a": 1}); err == nil {
		t.Fatalf("update of missing id should fail")
	}

	if err := d.Delete(ctx, "post", created.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// deleting again is a silent no-op
	if err := d.Delete(ctx, "post", created.ID()); err != nil {
		t.Fatalf("repeat delete should be a no-op: %v", err)
	}
	if err := d.Delete(ctx, "martian", "x"); err == nil {
		t.Fatalf("delete against unknown type should fail")
	}

	// INSERT, conflictless UPDATE, DELETE made it to the publisher
	var kinds []domain.ChangeType
	for _, ev := range cap.events {
		kinds = append(kinds, ev.Type)
	}
	want := []domain.ChangeType{domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if cap.events[2].PreviousRecord["title"] != "hey" {
		t.Fatalf("delete event should carry the previous record")
	}
}

func TestPGDatabase_Integration_QueryAndPaginate(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	d, _ := openDatabase(t, ctx, dsn)

	titles := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, title := range titles {
		if _, err := d.Create(ctx, "post", record.Record{
			"title": title,
			"views": i,
			"tags":  []any{"t" + title[:1]},
		}); err != nil {
			t.Fatalf("seed %s: %v", title, err)
		}
	}

	// eq on a json field
	recs, err := d.Query(ctx, "post", query.Filter{Field: "title", Op: query.OpEq, Value: "beta"})
	if err != nil {
		t.Fatalf("query eq: %v", err)
	}
	if len(recs) != 1 || recs[0]["title"] != "beta" {
		t.Fatalf("eq result = %+v", recs)
	}

	// numeric gt
	recs, err = d.Query(ctx, "post", query.Filter{Field: "views", Op: query.OpGt, Value: 2})
	if err != nil {
		t.Fatalf("query gt: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("gt result = %+v", recs)
	}

	// ci substring contains
	recs, err = d.Query(ctx, "post", query.Filter{Field: "title", Op: query.OpContains, Value: "ELT"})
	if err != nil {
		t.Fatalf("query contains: %v", err)
	}
	if len(recs) != 1 || recs[0]["title"] != "delta" {
		t.Fatalf("contains result = %+v", recs)
	}

	// array membership contains
	recs, err = d.Query(ctx, "post", query.Filter{Field: "tags", Op: query.OpContains, Value: "tb"})
	if err != nil {
		t.Fatalf("query tag contains: %v", err)
	}
	if len(recs) != 1 || recs[0]["title"] != "beta" {
		t.Fatalf("tag contains result = %+v", recs)
	}

	// sorted list with limit
	recs, err = d.List(ctx, "post", query.Options{
		OrderBy: []query.Order{{Field: "title", Dir: query.Asc}},
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0]["title"] != "alpha" || recs[1]["title"] != "beta" {
		t.Fatalf("sorted list = %+v", recs)
	}

	// cursor walk covers everything exactly once
	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := d.Paginate(ctx, "post", domain.PageOptions{
			Cursor:  cursor,
			Limit:   2,
			OrderBy: []query.Order{{Field: "title", Dir: query.Asc}},
		})
		if err != nil {
			t.Fatalf("paginate: %v", err)
		}
		for _, r := range page.Records {
			if seen[r.ID()] {
				t.Fatalf("record %s seen twice", r.ID())
			}
			seen[r.ID()] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != len(titles) {
		t.Fatalf("walk covered %d of %d", len(seen), len(titles))
	}

	// unknown cursor restarts from the top instead of failing
	page, err := d.Paginate(ctx, "post", domain.PageOptions{Cursor: "deleted-cursor", Limit: 3})
	if err != nil {
		t.Fatalf("paginate with stale cursor: %v", err)
	}
	if len(page.Records) != 3 || !page.HasMore {
		t.Fatalf("stale cursor page = %+v", page)
	}
}

func TestPGDatabase_Integration_QueryNearby(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	d, _ := openDatabase(t, ctx, dsn)

	seed := []record.Record{
		{"title": "berlin", "latitude": 52.52, "longitude": 13.405},
		{"title": "potsdam", "latitude": 52.3906, "longitude": 13.0645},
		{"title": "munich", "latitude": 48.1351, "longitude": 11.582},
		{"title": "nowhere"},
	}
	for _, r := range seed {
		if _, err := d.Create(ctx, "event", r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	near, err := d.QueryNearby(ctx, "event", domain.NearbyOptions{
		Latitude:  52.52,
		Longitude: 13.405,
		RadiusKm:  50,
		Options:   query.Options{OrderBy: []query.Order{{Field: "title", Dir: query.Asc}}},
	})
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(near) != 2 || near[0]["title"] != "berlin" || near[1]["title"] != "potsdam" {
		t.Fatalf("nearby = %+v", near)
	}
}
