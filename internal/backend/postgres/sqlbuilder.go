package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backplane/internal/core/query"
	"backplane/internal/core/record"
	perr "backplane/internal/platform/errors"
)

// tableRecords is the single table all entity types share
const tableRecords = "backplane_records"

// ddlRecords creates the record table and its scan indexes.
// Statements run one at a time; pgx extended protocol rejects batches
var ddlRecords = []string{
	`CREATE TABLE IF NOT EXISTS backplane_records (
		entity_type text        NOT NULL,
		id          text        NOT NULL,
		data        jsonb       NOT NULL,
		created_at  timestamptz NOT NULL,
		updated_at  timestamptz NOT NULL,
		PRIMARY KEY (entity_type, id)
	)`,
	`CREATE INDEX IF NOT EXISTS backplane_records_type_created_idx
		ON backplane_records (entity_type, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS backplane_records_data_idx
		ON backplane_records USING gin (data)`,
}

// builder accumulates positional args while sql fragments are composed
type builder struct {
	args []any
}

// arg appends v and returns its placeholder ($1, $2, ...)
func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// columnFields are stored as real columns, everything else lives in data.
// Column names derive from the field names through the casing translation
var columnFields = map[string]string{
	record.FieldID:        ToSnake(record.FieldID),
	record.FieldCreatedAt: ToSnake(record.FieldCreatedAt),
	record.FieldUpdatedAt: ToSnake(record.FieldUpdatedAt),
}

// fieldColumn returns the column name for a reserved field, "" otherwise
func fieldColumn(field string) string { return columnFields[field] }

// jsonExpr returns a jsonb expression resolving field inside data,
// binding the dot path as a text[] arg
func (b *builder) jsonExpr(field string) string {
	path := strings.Split(field, ".")
	return "data #> " + b.arg(path)
}

// textExpr is jsonExpr with text extraction
func (b *builder) textExpr(field string) string {
	path := strings.Split(field, ".")
	return "data #>> " + b.arg(path)
}

// jsonArg marshals v and binds it as a ::jsonb cast placeholder
func (b *builder) jsonArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", perr.InvalidArgf("filter value not representable: %v", err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

// compileFilter renders one filter as a SQL condition over the record table.
// Semantics mirror the in-process engine: a missing or null field passes eq
// against nil and neq against non-nil values, nothing else; type-mismatched
// comparisons degrade to text form
func compileFilter(b *builder, f query.Filter) (string, error) {
	if col := fieldColumn(f.Field); col != "" {
		return compileColumnFilter(b, col, f)
	}

	switch f.Op {
	case query.OpEq:
		if f.Value == nil {
			je := b.jsonExpr(f.Field)
			return "(" + je + " IS NULL OR " + je + " = 'null'::jsonb)", nil
		}
		ja, err := b.jsonArg(f.Value)
		if err != nil {
			return "", err
		}
		return b.jsonExpr(f.Field) + " = " + ja, nil

	case query.OpNeq:
		if f.Value == nil {
			je := b.jsonExpr(f.Field)
			return "(" + je + " IS NOT NULL AND " + je + " <> 'null'::jsonb)", nil
		}
		ja, err := b.jsonArg(f.Value)
		if err != nil {
			return "", err
		}
		je := b.jsonExpr(f.Field)
		return "(" + je + " IS NOT NULL AND " + je + " <> 'null'::jsonb AND " + je + " <> " + ja + ")", nil

	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		return compileOrderedFilter(b, f)

	case query.OpIn:
		je := b.jsonExpr(f.Field)
		ja, err := b.jsonArg(f.Value)
		if err != nil {
			return "", err
		}
		return "(" + je + " IS NOT NULL AND " + je + " <@ " + ja + ")", nil

	case query.OpContains:
		je := b.jsonExpr(f.Field)
		like := b.arg("%" + escapeLike(stringValue(f.Value)) + "%")
		ja, err := b.jsonArg(f.Value)
		if err != nil {
			return "", err
		}
		te := b.textExpr(f.Field)
		return "((jsonb_typeof(" + je + ") = 'string' AND " + te + " ILIKE " + like + ")" +
			" OR (jsonb_typeof(" + je + ") = 'array' AND " + je + " @> " + ja + "))", nil

	case query.OpStartsWith:
		je := b.jsonExpr(f.Field)
		like := b.arg(escapeLike(stringValue(f.Value)) + "%")
		return "(jsonb_typeof(" + je + ") = 'string' AND " + b.textExpr(f.Field) + " LIKE " + like + ")", nil

	case query.OpEndsWith:
		je := b.jsonExpr(f.Field)
		like := b.arg("%" + escapeLike(stringValue(f.Value)))
		return "(jsonb_typeof(" + je + ") = 'string' AND " + b.textExpr(f.Field) + " LIKE " + like + ")", nil
	}
	return "", perr.InvalidArgf("unsupported operator %q", f.Op)
}

// compileColumnFilter handles the reserved column-backed fields
func compileColumnFilter(b *builder, col string, f query.Filter) (string, error) {
	switch f.Op {
	case query.OpEq:
		return col + " = " + b.arg(f.Value), nil
	case query.OpNeq:
		return col + " <> " + b.arg(f.Value), nil
	case query.OpGt:
		return col + " > " + b.arg(f.Value), nil
	case query.OpGte:
		return col + " >= " + b.arg(f.Value), nil
	case query.OpLt:
		return col + " < " + b.arg(f.Value), nil
	case query.OpLte:
		return col + " <= " + b.arg(f.Value), nil
	case query.OpIn:
		return col + " = ANY(" + b.arg(f.Value) + ")", nil
	case query.OpContains:
		return col + "::text ILIKE " + b.arg("%"+escapeLike(stringValue(f.Value))+"%"), nil
	case query.OpStartsWith:
		return col + "::text LIKE " + b.arg(escapeLike(stringValue(f.Value))+"%"), nil
	case query.OpEndsWith:
		return col + "::text LIKE " + b.arg("%"+escapeLike(stringValue(f.Value))), nil
	}
	return "", perr.InvalidArgf("unsupported operator %q", f.Op)
}

// compileOrderedFilter renders gt/gte/lt/lte with a typeof guard so typed
// comparisons only apply to same-typed json values; everything else degrades
// to text comparison like the in-process engine
func compileOrderedFilter(b *builder, f query.Filter) (string, error) {
	op := map[query.Operator]string{
		query.OpGt:  ">",
		query.OpGte: ">=",
		query.OpLt:  "<",
		query.OpLte: "<=",
	}[f.Op]

	je := b.jsonExpr(f.Field)
	te := b.textExpr(f.Field)

	switch v := f.Value.(type) {
	case int, int32, int64, float32, float64:
		return "(jsonb_typeof(" + je + ") = 'number' AND (" + te + ")::numeric " + op + " " + b.arg(v) + ")", nil
	case time.Time:
		return "(jsonb_typeof(" + je + ") = 'string' AND (" + te + ")::timestamptz " + op + " " + b.arg(v) + ")", nil
	default:
		return "(" + je + " IS NOT NULL AND " + te + " " + op + " " + b.arg(stringValue(f.Value)) + ")", nil
	}
}

// compileWhere renders all filters joined by AND, "" when empty
func compileWhere(b *builder, where []query.Filter) (string, error) {
	if len(where) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(where))
	for _, f := range where {
		c, err := compileFilter(b, f)
		if err != nil {
			return "", err
		}
		conds = append(conds, c)
	}
	return " AND " + strings.Join(conds, " AND "), nil
}

// compileOrders renders an ORDER BY clause with nulls last regardless of
// direction, id as the final tiebreaker for a stable total order
func compileOrders(b *builder, orders []query.Order) string {
	parts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		dir := "ASC"
		if o.Dir == query.Desc {
			dir = "DESC"
		}
		if col := fieldColumn(o.Field); col != "" {
			parts = append(parts, col+" "+dir)
			continue
		}
		je := b.jsonExpr(o.Field)
		parts = append(parts, "("+je+" IS NULL) ASC, "+je+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// escapeLike neutralizes LIKE metacharacters in a user value
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
