package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// RecordsTable is the table every model's records live in.
const RecordsTable = "records"

// fieldNamePattern restricts field names to identifiers so they can be
// embedded in JSON paths. Values are never embedded.
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCompiler compiles predicates to parameterized SQLite SQL over the
// records table, where each row holds a model's record as canonical JSON.
//
// CRITICAL: every query has a deterministic ORDER BY (insertion sequence,
// then id).
// CRITICAL: all values are parameterized, never interpolated.
//
// Every compiled comparison evaluates to 0 or 1, never NULL, so NOT
// behaves like the in-memory evaluator for missing fields.
type SQLCompiler struct {
	// Fields is the target model's field table. It decides whether
	// contains applies to a string or to an array.
	Fields map[string]ir.FieldMeta
}

// NewSQLCompiler creates a compiler for a model with the given fields.
func NewSQLCompiler(fields map[string]ir.FieldMeta) *SQLCompiler {
	return &SQLCompiler{Fields: fields}
}

// CompileQuery builds the SELECT for one model's records filtered by p and
// windowed by page. Returns (sql, params, error).
func (c *SQLCompiler) CompileQuery(model string, p predicate.Predicate, page ir.Page) (string, []any, error) {
	var b strings.Builder
	params := []any{model}

	b.WriteString("SELECT id, fields FROM ")
	b.WriteString(RecordsTable)
	b.WriteString(" WHERE model = ?")

	if !predicate.IsMatchAll(p) {
		where, whereParams, err := c.CompilePredicate(p)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" AND (")
		b.WriteString(where)
		b.WriteString(")")
		params = append(params, whereParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey())

	if page.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, int64(page.Limit), int64(page.Offset()))
	}

	return b.String(), params, nil
}

// stableOrderKey returns the ORDER BY clause shared by every query.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey() string {
	return "seq ASC, id COLLATE BINARY ASC"
}

// CompilePredicate compiles p to a WHERE fragment.
func (c *SQLCompiler) CompilePredicate(p predicate.Predicate) (string, []any, error) {
	switch n := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case predicate.Comparison:
		return c.compileComparison(n)
	case *predicate.Comparison:
		return c.compileComparison(*n)
	case predicate.Group:
		return c.compileGroup(n)
	case *predicate.Group:
		return c.compileGroup(*n)
	}
	if predicate.IsMatchAll(p) {
		return "1 = 1", nil, nil
	}
	return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
}

func (c *SQLCompiler) compileGroup(g predicate.Group) (string, []any, error) {
	if len(g.Predicates) == 0 {
		switch g.Kind {
		case predicate.KindAnd:
			return "1 = 1", nil, nil
		case predicate.KindOr:
			return "1 = 0", nil, nil
		case predicate.KindNot:
			return "1 = 0", nil, nil
		}
		return "", nil, fmt.Errorf("unknown group kind %q", g.Kind)
	}

	parts := make([]string, 0, len(g.Predicates))
	var params []any
	for _, child := range g.Predicates {
		sql, childParams, err := c.CompilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, childParams...)
	}

	switch g.Kind {
	case predicate.KindAnd:
		return strings.Join(parts, " AND "), params, nil
	case predicate.KindOr:
		return strings.Join(parts, " OR "), params, nil
	case predicate.KindNot:
		return "NOT (" + strings.Join(parts, " AND ") + ")", params, nil
	}
	return "", nil, fmt.Errorf("unknown group kind %q", g.Kind)
}

func (c *SQLCompiler) compileComparison(cmp predicate.Comparison) (string, []any, error) {
	if !fieldNamePattern.MatchString(cmp.Field) {
		return "", nil, fmt.Errorf("invalid field name %q", cmp.Field)
	}
	x := fieldExpr(cmp.Field)
	isArray := c.Fields[cmp.Field].IsArray

	if ir.IsNull(cmp.Operand) {
		switch cmp.Op {
		case predicate.OpEq:
			return x + " IS NULL", nil, nil
		case predicate.OpNe:
			return x + " IS NOT NULL", nil, nil
		}
		return "", nil, fmt.Errorf("null operand with %s", cmp.Op)
	}

	switch cmp.Op {
	case predicate.OpEq, predicate.OpNe:
		switch cmp.Operand.(type) {
		case ir.IRArray, ir.IRObject:
			doc, err := ir.MarshalCanonical(cmp.Operand)
			if err != nil {
				return "", nil, fmt.Errorf("convert value: %w", err)
			}
			if cmp.Op == predicate.OpEq {
				return fmt.Sprintf("%s IS NOT NULL AND json(%s) = json(?)", x, x), []any{string(doc)}, nil
			}
			return fmt.Sprintf("%s IS NULL OR json(%s) <> json(?)", x, x), []any{string(doc)}, nil
		}
		param, err := irValueToParam(cmp.Operand)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		if cmp.Op == predicate.OpEq {
			return x + " IS ?", []any{param}, nil
		}
		return x + " IS NOT ?", []any{param}, nil

	case predicate.OpGt, predicate.OpLt, predicate.OpGe, predicate.OpLe:
		param, err := irValueToParam(cmp.Operand)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return fmt.Sprintf("%s IS NOT NULL AND %s %s ?", x, x, sqlOperator(cmp.Op)), []any{param}, nil

	case predicate.OpBetween:
		bounds, ok := cmp.Operand.(ir.IRArray)
		if !ok || len(bounds) != 2 {
			return "", nil, fmt.Errorf("between needs two bounds")
		}
		lo, err := irValueToParam(bounds[0])
		if err != nil {
			return "", nil, fmt.Errorf("convert low bound: %w", err)
		}
		hi, err := irValueToParam(bounds[1])
		if err != nil {
			return "", nil, fmt.Errorf("convert high bound: %w", err)
		}
		return fmt.Sprintf("%s IS NOT NULL AND %s BETWEEN ? AND ?", x, x), []any{lo, hi}, nil

	case predicate.OpContains, predicate.OpNotContains:
		param, err := irValueToParam(cmp.Operand)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		var sql string
		if isArray {
			sql = fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(fields, %s) WHERE json_each.value = ?)", jsonPath(cmp.Field))
			if cmp.Op == predicate.OpNotContains {
				sql = "NOT " + sql
			}
		} else {
			cond := "> 0"
			if cmp.Op == predicate.OpNotContains {
				cond = "= 0"
			}
			sql = fmt.Sprintf("COALESCE(instr(%s, ?), 0) %s", x, cond)
		}
		return sql, []any{param}, nil

	case predicate.OpBeginsWith:
		param, err := irValueToParam(cmp.Operand)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return fmt.Sprintf("%s IS NOT NULL AND substr(%s, 1, length(?)) = ?", x, x), []any{param, param}, nil
	}

	return "", nil, fmt.Errorf("unsupported operator %q", cmp.Op)
}

// fieldExpr returns the SQL expression for a field's value. The identity
// field is a real column; everything else lives in the JSON document.
func fieldExpr(field string) string {
	if field == ir.IDField {
		return "id"
	}
	return fmt.Sprintf("json_extract(fields, %s)", jsonPath(field))
}

func jsonPath(field string) string {
	return `'$."` + field + `"'`
}

func sqlOperator(op predicate.Operator) string {
	switch op {
	case predicate.OpGt:
		return ">"
	case predicate.OpLt:
		return "<"
	case predicate.OpGe:
		return ">="
	default:
		return "<="
	}
}

// irValueToParam converts a scalar IRValue to a Go value for a SQL
// parameter. Arrays and objects are handled by the caller as JSON text.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
