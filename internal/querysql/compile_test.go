package querysql

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

func postFields() map[string]ir.FieldMeta {
	return map[string]ir.FieldMeta{
		"id":     {Name: "id", Type: ir.FieldType{Scalar: ir.ScalarID}},
		"title":  {Name: "title", Type: ir.FieldType{Scalar: ir.ScalarString}},
		"rating": {Name: "rating", Type: ir.FieldType{Scalar: ir.ScalarInt}},
		"status": {Name: "status", Type: ir.FieldType{Enum: "Status"}},
		"tags":   {Name: "tags", Type: ir.FieldType{Scalar: ir.ScalarString}, IsArray: true},
	}
}

func cmp(field string, op predicate.Operator, v ir.IRValue) predicate.Comparison {
	return predicate.Comparison{Field: field, Op: op, Operand: v}
}

func TestCompileQuery_MatchAll(t *testing.T) {
	compiler := NewSQLCompiler(postFields())

	sql, params, err := compiler.CompileQuery("Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, fields FROM records WHERE model = ? ORDER BY seq ASC, id COLLATE BINARY ASC", sql)
	assert.Equal(t, []any{"Post"}, params)
}

func TestCompileQuery_Pagination(t *testing.T) {
	compiler := NewSQLCompiler(postFields())

	sql, params, err := compiler.CompileQuery("Post", nil, ir.Page{Page: 2, Limit: 5})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql, " LIMIT ? OFFSET ?"))
	assert.Equal(t, []any{"Post", int64(5), int64(10)}, params)
}

func TestCompileQuery_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler(postFields())
	preds := []predicate.Predicate{
		predicate.MatchAll,
		cmp("title", predicate.OpEq, ir.IRString("x")),
		predicate.Or(),
	}

	for _, p := range preds {
		sql, _, err := compiler.CompileQuery("Post", p, ir.Page{})
		require.NoError(t, err)
		assert.Contains(t, sql, "ORDER BY seq ASC, id COLLATE BINARY ASC")
	}
}

func TestCompileQuery_Golden(t *testing.T) {
	compiler := NewSQLCompiler(postFields())
	p := predicate.And(
		cmp("title", predicate.OpBeginsWith, ir.IRString("Hello")),
		predicate.Or(
			cmp("rating", predicate.OpGe, ir.IRInt(4)),
			predicate.Not(cmp("status", predicate.OpEq, ir.IRString("DRAFT"))),
		),
		cmp("tags", predicate.OpContains, ir.IRString("go")),
	)

	sql, params, err := compiler.CompileQuery("Post", p, ir.Page{Page: 1, Limit: 10})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "nested_query", []byte(sql))

	assert.Equal(t, []any{"Post", "Hello", "Hello", int64(4), "DRAFT", "go", int64(10), int64(10)}, params)
}

func TestCompilePredicate_Operators(t *testing.T) {
	compiler := NewSQLCompiler(postFields())
	title := `json_extract(fields, '$."title"')`
	rating := `json_extract(fields, '$."rating"')`
	tags := `json_extract(fields, '$."tags"')`

	tests := []struct {
		name       string
		p          predicate.Predicate
		wantSQL    string
		wantParams []any
	}{
		{"eq", cmp("title", predicate.OpEq, ir.IRString("x")), title + " IS ?", []any{"x"}},
		{"eq id uses column", cmp("id", predicate.OpEq, ir.IRString("abc")), "id IS ?", []any{"abc"}},
		{"ne", cmp("rating", predicate.OpNe, ir.IRInt(3)), rating + " IS NOT ?", []any{int64(3)}},
		{"eq null", cmp("title", predicate.OpEq, ir.IRNull{}), title + " IS NULL", nil},
		{"ne null", cmp("title", predicate.OpNe, ir.IRNull{}), title + " IS NOT NULL", nil},
		{"gt", cmp("rating", predicate.OpGt, ir.IRInt(3)), rating + " IS NOT NULL AND " + rating + " > ?", []any{int64(3)}},
		{"le float", cmp("rating", predicate.OpLe, ir.IRFloat(2.5)), rating + " IS NOT NULL AND " + rating + " <= ?", []any{2.5}},
		{"between", cmp("rating", predicate.OpBetween, ir.IRArray{ir.IRInt(1), ir.IRInt(3)}),
			rating + " IS NOT NULL AND " + rating + " BETWEEN ? AND ?", []any{int64(1), int64(3)}},
		{"string contains", cmp("title", predicate.OpContains, ir.IRString("ell")),
			"COALESCE(instr(" + title + ", ?), 0) > 0", []any{"ell"}},
		{"string notContains", cmp("title", predicate.OpNotContains, ir.IRString("ell")),
			"COALESCE(instr(" + title + ", ?), 0) = 0", []any{"ell"}},
		{"array contains", cmp("tags", predicate.OpContains, ir.IRString("go")),
			`EXISTS (SELECT 1 FROM json_each(fields, '$."tags"') WHERE json_each.value = ?)`, []any{"go"}},
		{"array notContains", cmp("tags", predicate.OpNotContains, ir.IRString("go")),
			`NOT EXISTS (SELECT 1 FROM json_each(fields, '$."tags"') WHERE json_each.value = ?)`, []any{"go"}},
		{"beginsWith", cmp("title", predicate.OpBeginsWith, ir.IRString("He")),
			title + " IS NOT NULL AND substr(" + title + ", 1, length(?)) = ?", []any{"He", "He"}},
		{"array eq", cmp("tags", predicate.OpEq, ir.IRArray{ir.IRString("a")}),
			tags + " IS NOT NULL AND json(" + tags + ") = json(?)", []any{`["a"]`}},
		{"array ne", cmp("tags", predicate.OpNe, ir.IRArray{ir.IRString("a")}),
			tags + " IS NULL OR json(" + tags + ") <> json(?)", []any{`["a"]`}},
		{"bool", cmp("title", predicate.OpEq, ir.IRBool(true)), title + " IS ?", []any{true}},
		{"empty and", predicate.And(), "1 = 1", nil},
		{"empty or", predicate.Or(), "1 = 0", nil},
		{"empty not", predicate.Not(), "1 = 0", nil},
		{"not", predicate.Not(cmp("title", predicate.OpEq, ir.IRString("x")), cmp("rating", predicate.OpEq, ir.IRInt(1))),
			"NOT ((" + title + " IS ?) AND (" + rating + " IS ?))", []any{"x", int64(1)}},
		{"or", predicate.Or(cmp("title", predicate.OpEq, ir.IRString("x")), cmp("title", predicate.OpEq, ir.IRString("y"))),
			"(" + title + " IS ?) OR (" + title + " IS ?)", []any{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compiler.CompilePredicate(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompilePredicate_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler(postFields())
	malicious := "x'); DROP TABLE records; --"

	sql, params, err := compiler.CompilePredicate(cmp("title", predicate.OpEq, ir.IRString(malicious)))
	require.NoError(t, err)

	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{malicious}, params)
}

func TestCompilePredicate_RejectsUnsafeFieldNames(t *testing.T) {
	compiler := NewSQLCompiler(postFields())

	_, _, err := compiler.CompilePredicate(cmp(`title"') OR 1=1 --`, predicate.OpEq, ir.IRString("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field name")
}

func TestCompilePredicate_Errors(t *testing.T) {
	compiler := NewSQLCompiler(postFields())

	_, _, err := compiler.CompilePredicate(cmp("rating", predicate.OpGt, ir.IRNull{}))
	assert.Error(t, err)

	_, _, err = compiler.CompilePredicate(cmp("rating", predicate.Operator("like"), ir.IRInt(1)))
	assert.Error(t, err)

	_, _, err = compiler.CompilePredicate(cmp("rating", predicate.OpBetween, ir.IRInt(1)))
	assert.Error(t, err)

	_, _, err = compiler.CompilePredicate(predicate.Group{Kind: "xor", Predicates: []predicate.Predicate{cmp("rating", predicate.OpEq, ir.IRInt(1))}})
	assert.Error(t, err)

	_, _, err = compiler.CompileQuery("Post", predicate.And(cmp("rating", predicate.OpGt, ir.IRArray{})), ir.Page{})
	assert.Error(t, err)
}

func TestIRValueToParam(t *testing.T) {
	tests := []struct {
		input ir.IRValue
		want  any
	}{
		{ir.IRString("a"), "a"},
		{ir.IRInt(1), int64(1)},
		{ir.IRFloat(1.5), 1.5},
		{ir.IRBool(false), false},
		{ir.IRNull{}, nil},
	}
	for _, tt := range tests {
		got, err := irValueToParam(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := irValueToParam(ir.IRArray{})
	assert.Error(t, err)
	_, err = irValueToParam(ir.IRObject{})
	assert.Error(t, err)
}
