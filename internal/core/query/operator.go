// Package query evaluates filter/sort/pagination options over record
// collections. Everything here is pure: no mutation, no I/O, and no errors at
// evaluation time - malformed comparisons degrade instead of failing
package query

import (
	"strings"

	perr "backplane/internal/platform/errors"
)

// Operator is the closed set of filter predicates.
// Dispatch over it is exhaustive; adding an operator is a compile-visible change
type Operator uint8

const (
	// OpEq matches strict equality
	OpEq Operator = iota
	// OpNeq matches strict inequality
	OpNeq
	// OpGt matches values ordered strictly after the filter value
	OpGt
	// OpGte matches values ordered at or after the filter value
	OpGte
	// OpLt matches values ordered strictly before the filter value
	OpLt
	// OpLte matches values ordered at or before the filter value
	OpLte
	// OpIn matches membership of the field value in the filter's array value
	OpIn
	// OpContains matches case-insensitive substrings and array membership
	OpContains
	// OpStartsWith matches case-insensitive string prefixes
	OpStartsWith
	// OpEndsWith matches case-insensitive string suffixes
	OpEndsWith
)

var opNames = map[Operator]string{
	OpEq:         "eq",
	OpNeq:        "neq",
	OpGt:         "gt",
	OpGte:        "gte",
	OpLt:         "lt",
	OpLte:        "lte",
	OpIn:         "in",
	OpContains:   "contains",
	OpStartsWith: "startsWith",
	OpEndsWith:   "endsWith",
}

// String returns the wire name of the operator
func (op Operator) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown"
}

// ParseOperator resolves a wire name ("eq", "startsWith"...) to an Operator
func ParseOperator(s string) (Operator, error) {
	for op, name := range opNames {
		if strings.EqualFold(s, name) {
			return op, nil
		}
	}
	return OpEq, perr.InvalidArgf("unknown filter operator %q", s)
}

// Filter is a single (field, operator, value) predicate.
// Field may address nested values via dot-path
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Direction orders a sort key
type Direction uint8

const (
	// Asc sorts ascending
	Asc Direction = iota
	// Desc sorts descending
	Desc
)

// String returns the wire name of the direction
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection resolves "asc"/"desc" (case-insensitive); empty means asc
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return Asc, perr.InvalidArgf("unknown sort direction %q", s)
	}
}

// Order is one sort clause; clauses form a stable multi-key sort
type Order struct {
	Field string
	Dir   Direction
}

// ParseExpression parses a realtime filter string of the form "field=op.value".
// The value is kept as its raw string; the mock engine validates shape only
// and never narrows delivery by it
func ParseExpression(s string) (Filter, error) {
	eq := strings.Index(s, "=")
	if eq <= 0 {
		return Filter{}, perr.InvalidArgf("malformed filter expression %q", s)
	}
	field := s[:eq]
	rest := s[eq+1:]
	dot := strings.Index(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return Filter{}, perr.InvalidArgf("malformed filter expression %q", s)
	}
	op, err := ParseOperator(rest[:dot])
	if err != nil {
		return Filter{}, err
	}
	return Filter{Field: field, Op: op, Value: rest[dot+1:]}, nil
}
