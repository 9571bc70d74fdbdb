package domain

import (
	"context"

	"backplane/internal/core/record"
)

// ServicePort is the records workflow surface the HTTP layer binds to
type ServicePort interface {
	Get(ctx context.Context, entityType, id string) (record.Record, error)
	List(ctx context.Context, entityType string, in QueryInput) ([]record.Record, error)
	Create(ctx context.Context, entityType string, fields record.Record) (record.Record, error)
	Update(ctx context.Context, entityType, id string, patch record.Record) (record.Record, error)
	Delete(ctx context.Context, entityType, id string) error
	Nearby(ctx context.Context, entityType string, in NearbyInput) ([]record.Record, error)
	Page(ctx context.Context, entityType string, in PageInput) (PageResult, error)
}
