// Package service contains records workflows over the backend contract
package service

import (
	"context"

	backend "backplane/internal/backend/domain"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
	perr "backplane/internal/platform/errors"
	"backplane/internal/services/api/records/domain"
)

// Service defines the service contract for records
type Service interface{ domain.ServicePort }

// Svc implements the Service interface
type Svc struct {
	db backend.DatabasePort
}

// New creates a new records service
func New(db backend.DatabasePort) *Svc {
	if db == nil {
		panic("records.Service requires a non nil DatabasePort")
	}
	return &Svc{db: db}
}

// Get returns one record; a missing id is NotFound at this layer so the
// transport can map it to 404
func (s *Svc) Get(ctx context.Context, entityType, id string) (record.Record, error) {
	rec, err := s.db.Get(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, perr.NotFoundf("%s %s not found", entityType, id)
	}
	return rec, nil
}

// List runs a filtered/sorted/windowed read
func (s *Svc) List(ctx context.Context, entityType string, in domain.QueryInput) ([]record.Record, error) {
	opts, err := in.Options()
	if err != nil {
		return nil, err
	}
	return s.db.List(ctx, entityType, opts)
}

// Create inserts a record with the provided fields
func (s *Svc) Create(ctx context.Context, entityType string, fields record.Record) (record.Record, error) {
	return s.db.Create(ctx, entityType, fields)
}

// Update merges patch into the stored record
func (s *Svc) Update(ctx context.Context, entityType, id string, patch record.Record) (record.Record, error) {
	return s.db.Update(ctx, entityType, id, patch)
}

// Delete removes a record; deleting a missing id is a no-op by contract
func (s *Svc) Delete(ctx context.Context, entityType, id string) error {
	return s.db.Delete(ctx, entityType, id)
}

// Nearby radius-filters location-bearing records then applies the query options
func (s *Svc) Nearby(ctx context.Context, entityType string, in domain.NearbyInput) ([]record.Record, error) {
	if in.RadiusKm <= 0 {
		return nil, perr.InvalidArgf("radiusKm must be positive")
	}
	where, err := domain.CompileFilters(in.Where)
	if err != nil {
		return nil, err
	}
	orders, err := domain.CompileOrders(in.OrderBy)
	if err != nil {
		return nil, err
	}
	return s.db.QueryNearby(ctx, entityType, backend.NearbyOptions{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		RadiusKm:  in.RadiusKm,
		Options:   query.Options{Where: where, OrderBy: orders, Limit: in.Limit, Offset: in.Offset},
	})
}

// Page runs a cursor-paginated read
func (s *Svc) Page(ctx context.Context, entityType string, in domain.PageInput) (domain.PageResult, error) {
	where, err := domain.CompileFilters(in.Where)
	if err != nil {
		return domain.PageResult{}, err
	}
	orders, err := domain.CompileOrders(in.OrderBy)
	if err != nil {
		return domain.PageResult{}, err
	}
	page, err := s.db.Paginate(ctx, entityType, backend.PageOptions{
		Cursor:  in.Cursor,
		Limit:   in.Limit,
		Where:   where,
		OrderBy: orders,
	})
	if err != nil {
		return domain.PageResult{}, err
	}
	return domain.PageResult{Records: page.Records, NextCursor: page.NextCursor, HasMore: page.HasMore}, nil
}
