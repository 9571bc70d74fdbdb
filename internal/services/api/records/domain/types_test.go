package domain

import (
	"testing"

	"backplane/internal/core/query"
	perr "backplane/internal/platform/errors"
	kit "backplane/internal/platform/testkit"
)

func TestCompileFilters(t *testing.T) {
	t.Parallel()

	out, err := CompileFilters([]Filter{
		{Field: "status", Op: "eq", Value: "open"},
		{Field: "score", Op: "gte", Value: 10},
	})
	kit.MustNoErr(t, err)
	if len(out) != 2 {
		t.Fatalf("expected 2 filters got %d", len(out))
	}
	if out[0].Op != query.OpEq || out[1].Op != query.OpGte {
		t.Fatalf("operator mapping wrong: %v %v", out[0].Op, out[1].Op)
	}

	_, err = CompileFilters([]Filter{{Field: "x", Op: "like", Value: "y"}})
	kit.MustCode(t, err, perr.ErrorCodeInvalidArgument)

	out, err = CompileFilters(nil)
	kit.MustNoErr(t, err)
	if out != nil {
		t.Fatalf("nil in, nil out expected")
	}
}

func TestCompileOrders(t *testing.T) {
	t.Parallel()

	out, err := CompileOrders([]Order{
		{Field: "createdAt", Dir: "desc"},
		{Field: "title"}, // empty dir means asc
	})
	kit.MustNoErr(t, err)
	if out[0].Dir != query.Desc || out[1].Dir != query.Asc {
		t.Fatalf("direction mapping wrong: %v %v", out[0].Dir, out[1].Dir)
	}

	_, err = CompileOrders([]Order{{Field: "x", Dir: "sideways"}})
	kit.MustCode(t, err, perr.ErrorCodeInvalidArgument)
}

func TestQueryInputOptions(t *testing.T) {
	t.Parallel()

	in := QueryInput{
		Where:   []Filter{{Field: "status", Op: "eq", Value: "open"}},
		OrderBy: []Order{{Field: "score", Dir: "desc"}},
		Limit:   5,
		Offset:  2,
	}
	opts, err := in.Options()
	kit.MustNoErr(t, err)
	if len(opts.Where) != 1 || len(opts.OrderBy) != 1 || opts.Limit != 5 || opts.Offset != 2 {
		t.Fatalf("options not carried over: %+v", opts)
	}

	in.Where[0].Op = "nope"
	if _, err := in.Options(); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}
