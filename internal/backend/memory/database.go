package memory

import (
	"context"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/core/geo"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
)

// Database satisfies domain.DatabasePort against the in-process store.
// Operations are synchronous; the optional latency simulates a network
// round-trip per call without introducing real concurrency
type Database struct {
	store   *Store
	latency time.Duration
}

// NewDatabase wires the database port over store
func NewDatabase(store *Store, latency time.Duration) *Database {
	return &Database{store: store, latency: latency}
}

// delay simulates network latency while honoring ctx cancellation
func (d *Database) delay(ctx context.Context) error {
	if d.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get implements domain.DatabasePort; a missing id returns (nil, nil)
func (d *Database) Get(ctx context.Context, entityType, id string) (record.Record, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return d.store.Get(entityType, id), nil
}

// List implements domain.DatabasePort; unknown entity types read as empty
func (d *Database) List(ctx context.Context, entityType string, opts query.Options) ([]record.Record, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return query.Apply(d.store.Snapshot(entityType), opts), nil
}

// Create implements domain.DatabasePort
func (d *Database) Create(ctx context.Context, entityType string, fields record.Record) (record.Record, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return d.store.Create(entityType, fields)
}

// Update implements domain.DatabasePort
func (d *Database) Update(ctx context.Context, entityType, id string, patch record.Record) (record.Record, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return d.store.Update(entityType, id, patch)
}

// Delete implements domain.DatabasePort
func (d *Database) Delete(ctx context.Context, entityType, id string) error {
	if err := d.delay(ctx); err != nil {
		return err
	}
	return d.store.Delete(entityType, id)
}

// Query implements domain.DatabasePort as List with only filters
func (d *Database) Query(ctx context.Context, entityType string, where ...query.Filter) ([]record.Record, error) {
	return d.List(ctx, entityType, query.Options{Where: where})
}

// QueryNearby implements domain.DatabasePort. The radius filter runs first;
// opts.Options then applies to the geofiltered subset
func (d *Database) QueryNearby(ctx context.Context, entityType string, opts domain.NearbyOptions) ([]record.Record, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	within := geo.Within(d.store.Snapshot(entityType), opts.Latitude, opts.Longitude, opts.RadiusKm)
	return query.Apply(within, opts.Options), nil
}

// Paginate implements domain.DatabasePort. Filters apply before the cursor
// window is computed so pages agree on one filtered ordering
func (d *Database) Paginate(ctx context.Context, entityType string, opts domain.PageOptions) (query.Page, error) {
	if err := d.delay(ctx); err != nil {
		return query.Page{}, err
	}
	recs := d.store.Snapshot(entityType)
	if len(opts.Where) > 0 {
		recs = query.Apply(recs, query.Options{Where: opts.Where})
	}
	return query.Paginate(recs, opts.Cursor, opts.Limit, opts.OrderBy), nil
}
