// Package domain defines wire types for the records API
package domain

import (
	"backplane/internal/core/query"
	"backplane/internal/core/record"
)

// Filter is the wire form of one predicate; Op carries the operator name
// ("eq", "in", "startsWith"...)
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Order is the wire form of one sort clause; Dir is "asc", "desc", or empty
type Order struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

// QueryInput shapes a filtered/sorted/windowed list read
type QueryInput struct {
	Where   []Filter `json:"where"`
	OrderBy []Order  `json:"orderBy"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// NearbyInput shapes a radius query; the embedded query options apply after
// the geo cut
type NearbyInput struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	RadiusKm  float64  `json:"radiusKm"`
	Where     []Filter `json:"where"`
	OrderBy   []Order  `json:"orderBy"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// PageInput shapes a cursor-paginated read
type PageInput struct {
	Cursor  string   `json:"cursor"`
	Limit   int      `json:"limit"`
	Where   []Filter `json:"where"`
	OrderBy []Order  `json:"orderBy"`
}

// PageResult is one page of records plus the continuation token
type PageResult struct {
	Records    []record.Record `json:"records"`
	NextCursor string          `json:"nextCursor,omitempty"`
	HasMore    bool            `json:"hasMore"`
}

// CompileFilters resolves wire filters into engine predicates
func CompileFilters(in []Filter) ([]query.Filter, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]query.Filter, 0, len(in))
	for _, f := range in {
		op, err := query.ParseOperator(f.Op)
		if err != nil {
			return nil, err
		}
		out = append(out, query.Filter{Field: f.Field, Op: op, Value: f.Value})
	}
	return out, nil
}

// CompileOrders resolves wire sort clauses into engine orders
func CompileOrders(in []Order) ([]query.Order, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]query.Order, 0, len(in))
	for _, o := range in {
		dir, err := query.ParseDirection(o.Dir)
		if err != nil {
			return nil, err
		}
		out = append(out, query.Order{Field: o.Field, Dir: dir})
	}
	return out, nil
}

// Options resolves the input into engine options
func (in QueryInput) Options() (query.Options, error) {
	where, err := CompileFilters(in.Where)
	if err != nil {
		return query.Options{}, err
	}
	orders, err := CompileOrders(in.OrderBy)
	if err != nil {
		return query.Options{}, err
	}
	return query.Options{Where: where, OrderBy: orders, Limit: in.Limit, Offset: in.Offset}, nil
}
