package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/ir"
)

func TestParseClause(t *testing.T) {
	tests := []struct {
		input string
		want  Comparison
	}{
		{`title eq "hello world"`, cmp("title", OpEq, ir.IRString("hello world"))},
		{`rating ge 4`, cmp("rating", OpGe, ir.IRInt(4))},
		{`score lt 2.5`, cmp("score", OpLt, ir.IRFloat(2.5))},
		{`tags contains urgent`, cmp("tags", OpContains, ir.IRString("urgent"))},
		{`published eq true`, cmp("published", OpEq, ir.IRBool(true))},
		{`status ne null`, cmp("status", OpNe, ir.IRNull{})},
		{`rating between [1, 3]`, cmp("rating", OpBetween, ir.IRArray{ir.IRInt(1), ir.IRInt(3)})},
		{`  title   beginsWith   Hel  `, cmp("title", OpBeginsWith, ir.IRString("Hel"))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClause(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClauseErrors(t *testing.T) {
	for _, input := range []string{"", "title", "title eq"} {
		_, err := ParseClause(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestFromClauses(t *testing.T) {
	p, err := FromClauses(nil)
	require.NoError(t, err)
	assert.True(t, IsMatchAll(p))

	p, err = FromClauses([]string{"rating ge 4"})
	require.NoError(t, err)
	assert.Equal(t, cmp("rating", OpGe, ir.IRInt(4)), p)

	p, err = FromClauses([]string{"rating ge 4", `title eq "x"`})
	require.NoError(t, err)
	assert.Equal(t, And(cmp("rating", OpGe, ir.IRInt(4)), cmp("title", OpEq, ir.IRString("x"))), p)

	_, err = FromClauses([]string{"bad"})
	assert.Error(t, err)
}

func TestComparisonString(t *testing.T) {
	assert.Equal(t, `title eq "x"`, cmp("title", OpEq, ir.IRString("x")).String())
	assert.Equal(t, `rating between [1,3]`, cmp("rating", OpBetween, ir.IRArray{ir.IRInt(1), ir.IRInt(3)}).String())
}
