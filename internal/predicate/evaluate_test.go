package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tessera/internal/ir"
)

func cmp(field string, op Operator, v ir.IRValue) Comparison {
	return Comparison{Field: field, Op: op, Operand: v}
}

func TestEvaluateComparisons(t *testing.T) {
	rec := ir.IRObject{
		"id":     ir.IRString("p1"),
		"title":  ir.IRString("Hello world"),
		"rating": ir.IRInt(4),
		"score":  ir.IRFloat(2.5),
		"tags":   ir.IRArray{ir.IRString("go"), ir.IRString("db")},
	}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq", cmp("title", OpEq, ir.IRString("Hello world")), true},
		{"eq mismatch", cmp("title", OpEq, ir.IRString("x")), false},
		{"ne", cmp("rating", OpNe, ir.IRInt(3)), true},
		{"gt", cmp("rating", OpGt, ir.IRInt(3)), true},
		{"gt equal", cmp("rating", OpGt, ir.IRInt(4)), false},
		{"ge equal", cmp("rating", OpGe, ir.IRInt(4)), true},
		{"lt float vs int", cmp("score", OpLt, ir.IRInt(3)), true},
		{"le", cmp("score", OpLe, ir.IRFloat(2.5)), true},
		{"between inclusive", cmp("rating", OpBetween, ir.IRArray{ir.IRInt(4), ir.IRInt(5)}), true},
		{"between outside", cmp("rating", OpBetween, ir.IRArray{ir.IRInt(5), ir.IRInt(9)}), false},
		{"string contains", cmp("title", OpContains, ir.IRString("lo wo")), true},
		{"string notContains", cmp("title", OpNotContains, ir.IRString("zzz")), true},
		{"array contains", cmp("tags", OpContains, ir.IRString("db")), true},
		{"array contains missing", cmp("tags", OpContains, ir.IRString("js")), false},
		{"array notContains", cmp("tags", OpNotContains, ir.IRString("go")), false},
		{"beginsWith", cmp("title", OpBeginsWith, ir.IRString("Hell")), true},
		{"beginsWith mismatch", cmp("title", OpBeginsWith, ir.IRString("world")), false},
		{"string ordering", cmp("title", OpLt, ir.IRString("I")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.p, rec))
		})
	}
}

func TestEvaluateMissingFieldIsNull(t *testing.T) {
	rec := ir.IRObject{"id": ir.IRString("p1")}

	assert.True(t, Evaluate(cmp("title", OpEq, ir.IRNull{}), rec))
	assert.False(t, Evaluate(cmp("title", OpNe, ir.IRNull{}), rec))
	assert.True(t, Evaluate(cmp("title", OpNe, ir.IRString("x")), rec))
	assert.False(t, Evaluate(cmp("title", OpEq, ir.IRString("x")), rec))
	assert.False(t, Evaluate(cmp("rating", OpGt, ir.IRInt(0)), rec))
	assert.False(t, Evaluate(cmp("rating", OpLe, ir.IRInt(0)), rec))
	assert.False(t, Evaluate(cmp("rating", OpBetween, ir.IRArray{ir.IRInt(0), ir.IRInt(9)}), rec))
	assert.False(t, Evaluate(cmp("title", OpContains, ir.IRString("x")), rec))
	assert.True(t, Evaluate(cmp("title", OpNotContains, ir.IRString("x")), rec))
	assert.False(t, Evaluate(cmp("title", OpBeginsWith, ir.IRString("x")), rec))
}

func TestEvaluateGroups(t *testing.T) {
	rec := ir.IRObject{"rating": ir.IRInt(4)}
	yes := cmp("rating", OpEq, ir.IRInt(4))
	no := cmp("rating", OpEq, ir.IRInt(5))

	assert.True(t, Evaluate(And(), rec), "empty AND matches everything")
	assert.False(t, Evaluate(Or(), rec), "empty OR matches nothing")
	assert.True(t, Evaluate(And(yes, yes), rec))
	assert.False(t, Evaluate(And(yes, no), rec))
	assert.True(t, Evaluate(Or(no, yes), rec))
	assert.False(t, Evaluate(Or(no, no), rec))
	assert.False(t, Evaluate(Not(yes), rec))
	assert.True(t, Evaluate(Not(yes, no), rec), "NOT negates the conjunction")
	assert.True(t, Evaluate(&Group{Kind: KindAnd, Predicates: []Predicate{&yes}}, rec))
}

func TestEvaluateMatchAll(t *testing.T) {
	assert.True(t, Evaluate(MatchAll, ir.IRObject{}))
	assert.True(t, Evaluate(nil, ir.IRObject{}))
}
