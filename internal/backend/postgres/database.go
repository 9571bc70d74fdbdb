package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"backplane/internal/backend/domain"
	"backplane/internal/core/geo"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
	"backplane/internal/modkit/repokit"
	"backplane/internal/platform/clock"
	perr "backplane/internal/platform/errors"
	"backplane/internal/platform/logger"
	"backplane/internal/platform/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Publisher receives change events after successful mutations
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// Options configure the postgres database port
type Options struct {
	// EntityTypes are the tables writes are allowed against
	EntityTypes []string
	// FieldDefaults apply per entity type at create
	FieldDefaults map[string]record.Record
	// Clock defaults to the wall clock
	Clock clock.Clock
	// Publisher receives change events; nil disables emission
	Publisher Publisher
}

// Database satisfies domain.DatabasePort over the sql seam. All entity types
// share one jsonb table keyed by (entity_type, id); reserved record fields
// are mirrored into columns for indexed scans
type Database struct {
	q        repokit.TxRunner
	types    map[string]bool
	defaults map[string]record.Record
	clk      clock.Clock
	pub      Publisher
	log      *logger.Logger
}

// New wires the database port over the sql seam
func New(q repokit.TxRunner, opts Options) *Database {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	types := make(map[string]bool, len(opts.EntityTypes))
	for _, t := range opts.EntityTypes {
		types[t] = true
	}
	return &Database{
		q:        q,
		types:    types,
		defaults: opts.FieldDefaults,
		clk:      opts.Clock,
		pub:      opts.Publisher,
		log:      logger.Named("postgres"),
	}
}

// Migrate creates the record table and indexes when absent
func (d *Database) Migrate(ctx context.Context) error {
	for _, ddl := range ddlRecords {
		if _, err := d.q.Exec(ctx, ddl); err != nil {
			return perr.TransportWrap(err, "pg.migrate")
		}
	}
	return nil
}

// Get implements domain.DatabasePort; a missing id returns (nil, nil)
func (d *Database) Get(ctx context.Context, entityType, id string) (record.Record, error) {
	var raw []byte
	err := d.q.QueryRow(ctx,
		`SELECT data FROM `+tableRecords+` WHERE entity_type=$1 AND id=$2`,
		entityType, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.TransportWrap(err, "pg.get")
	}
	return decodeRecord(raw)
}

// List implements domain.DatabasePort; unknown entity types read as empty
func (d *Database) List(ctx context.Context, entityType string, opts query.Options) ([]record.Record, error) {
	b := &builder{}
	sql := `SELECT data FROM ` + tableRecords + ` WHERE entity_type=` + b.arg(entityType)

	whereSQL, err := compileWhere(b, opts.Where)
	if err != nil {
		return nil, err
	}
	sql += whereSQL
	sql += compileOrders(b, opts.OrderBy)
	if opts.Offset > 0 {
		sql += " OFFSET " + b.arg(opts.Offset)
	}
	if opts.Limit > 0 {
		sql += " LIMIT " + b.arg(opts.Limit)
	}

	return d.selectRecords(ctx, sql, b.args...)
}

// Create implements domain.DatabasePort
func (d *Database) Create(ctx context.Context, entityType string, fields record.Record) (record.Record, error) {
	if !d.types[entityType] {
		return nil, perr.NotFoundf("unknown entity type %q", entityType)
	}

	rec := fields.Clone()
	if rec == nil {
		rec = record.Record{}
	}
	for k, v := range d.defaults[entityType] {
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	if rec.ID() == "" {
		rec[record.FieldID] = record.NewID()
	}
	now := d.clk.Now()
	rec[record.FieldCreatedAt] = now
	rec[record.FieldUpdatedAt] = now

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, perr.JSONErrf("record not serializable: %v", err)
	}

	_, err = d.q.Exec(ctx,
		`INSERT INTO `+tableRecords+` (entity_type, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entityType, rec.ID(), raw, now, now,
	)
	if isUniqueViolation(err) {
		return nil, perr.Conflictf("%s %s already exists", entityType, rec.ID())
	}
	if err != nil {
		return nil, perr.TransportWrap(err, "pg.create")
	}

	d.publish(domain.ChangeEvent{Type: domain.ChangeInsert, EntityType: entityType, Record: rec.Clone()})
	return rec, nil
}

// Update implements domain.DatabasePort with a read-modify-write transaction.
// id and createdAt are protected; updatedAt never decreases
func (d *Database) Update(ctx context.Context, entityType, id string, patch record.Record) (record.Record, error) {
	var prev, next record.Record
	err := repokit.WithTx(ctx, d.q, func(q repokit.Queryer) error {
		var raw []byte
		err := q.QueryRow(ctx,
			`SELECT data FROM `+tableRecords+` WHERE entity_type=$1 AND id=$2 FOR UPDATE`,
			entityType, id,
		).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return perr.NotFoundf("%s %s not found", entityType, id)
		}
		if err != nil {
			return perr.TransportWrap(err, "pg.update")
		}
		prev, err = decodeRecord(raw)
		if err != nil {
			return err
		}

		next = prev.Clone().Merge(patch)
		next[record.FieldID] = prev.ID()
		next[record.FieldCreatedAt] = prev.CreatedAt()
		now := d.clk.Now()
		if now.Before(prev.UpdatedAt()) {
			now = prev.UpdatedAt()
		}
		next[record.FieldUpdatedAt] = now

		out, err := json.Marshal(next)
		if err != nil {
			return perr.JSONErrf("record not serializable: %v", err)
		}
		return store.ExecOne(ctx, q,
			`UPDATE `+tableRecords+` SET data=$1, updated_at=$2 WHERE entity_type=$3 AND id=$4`,
			out, now, entityType, id,
		)
	})
	if err != nil {
		return nil, err
	}

	d.publish(domain.ChangeEvent{
		Type:           domain.ChangeUpdate,
		EntityType:     entityType,
		Record:         next.Clone(),
		PreviousRecord: prev,
	})
	return next, nil
}

// Delete implements domain.DatabasePort. Deleting a missing id is a silent
// no-op; deleting against an unknown entity type fails
func (d *Database) Delete(ctx context.Context, entityType, id string) error {
	if !d.types[entityType] {
		return perr.NotFoundf("unknown entity type %q", entityType)
	}

	var raw []byte
	err := d.q.QueryRow(ctx,
		`DELETE FROM `+tableRecords+` WHERE entity_type=$1 AND id=$2 RETURNING data`,
		entityType, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return perr.TransportWrap(err, "pg.delete")
	}

	prev, err := decodeRecord(raw)
	if err != nil {
		return err
	}
	d.publish(domain.ChangeEvent{
		Type:           domain.ChangeDelete,
		EntityType:     entityType,
		Record:         record.Record{record.FieldID: id},
		PreviousRecord: prev,
	})
	return nil
}

// Query implements domain.DatabasePort as List with only filters
func (d *Database) Query(ctx context.Context, entityType string, where ...query.Filter) ([]record.Record, error) {
	return d.List(ctx, entityType, query.Options{Where: where})
}

// QueryNearby implements domain.DatabasePort. SQL narrows to rows carrying
// numeric coordinates; the haversine cut and the trailing options run in
// process because the radius math has no faithful jsonb form
func (d *Database) QueryNearby(ctx context.Context, entityType string, opts domain.NearbyOptions) ([]record.Record, error) {
	b := &builder{}
	sql := `SELECT data FROM ` + tableRecords + ` WHERE entity_type=` + b.arg(entityType) +
		` AND jsonb_typeof(data->'latitude') = 'number'` +
		` AND jsonb_typeof(data->'longitude') = 'number'`

	recs, err := d.selectRecords(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	within := geo.Within(recs, opts.Latitude, opts.Longitude, opts.RadiusKm)
	return query.Apply(within, opts.Options), nil
}

// Paginate implements domain.DatabasePort. The cursor id is resolved to its
// row number under the requested ordering; an unknown cursor restarts from
// the top. One extra row is probed to compute HasMore
func (d *Database) Paginate(ctx context.Context, entityType string, opts domain.PageOptions) (query.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = query.DefaultPageLimit
	}
	orders := opts.OrderBy
	if len(orders) == 0 {
		orders = []query.Order{{Field: record.FieldCreatedAt, Dir: query.Desc}}
	}

	b := &builder{}
	whereSQL, err := compileWhere(b, opts.Where)
	if err != nil {
		return query.Page{}, err
	}
	typeArg := b.arg(entityType)
	orderSQL := compileOrders(b, orders)

	sql := `WITH ordered AS (
		SELECT id, data, row_number() OVER (` + orderSQL + `) AS rn
		FROM ` + tableRecords + ` WHERE entity_type=` + typeArg + whereSQL + `
	)
	SELECT data FROM ordered
	WHERE rn > COALESCE((SELECT rn FROM ordered WHERE id=` + b.arg(opts.Cursor) + `), 0)
	ORDER BY rn
	LIMIT ` + b.arg(limit+1)

	recs, err := d.selectRecords(ctx, sql, b.args...)
	if err != nil {
		return query.Page{}, err
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}
	next := ""
	if hasMore && len(recs) > 0 {
		next = recs[len(recs)-1].ID()
	}
	return query.Page{Records: recs, NextCursor: next, HasMore: hasMore}, nil
}

// selectRecords runs a data-projection query and decodes every row
func (d *Database) selectRecords(ctx context.Context, sql string, args ...any) ([]record.Record, error) {
	rows, err := d.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.TransportWrap(err, "pg.select")
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, perr.TransportWrap(err, "pg.scan")
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.TransportWrap(err, "pg.rows")
	}
	return out, nil
}

// decodeRecord parses a jsonb payload back into a record, restoring
// allowlisted date fields to time values
func decodeRecord(raw []byte) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, perr.JSONErrf("stored record corrupt: %v", err)
	}
	record.RehydrateDates(rec)
	return rec, nil
}

func (d *Database) publish(ev domain.ChangeEvent) {
	if d.pub != nil {
		d.pub.Publish(ev)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
