package condition_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/condition"
)

func TestNewLeafArity(t *testing.T) {
	tests := []struct {
		name    string
		op      condition.Operator
		values  []any
		wantErr bool
	}{
		{"EqualScalar", condition.Equal, []any{1}, false},
		{"EqualNoValue", condition.Equal, nil, true},
		{"EqualTwoValues", condition.Equal, []any{1, 2}, true},
		{"EqualSlice", condition.Equal, []any{[]int{1}}, true},
		{"EqualBytes", condition.Equal, []any{[]byte("x")}, false},
		{"LessThanNil", condition.LessThan, []any{nil}, true},
		{"InList", condition.In, []any{1, 2, 3}, false},
		{"InSlice", condition.In, []any{[]string{"a", "b"}}, false},
		{"InEmpty", condition.In, nil, true},
		{"InEmptySlice", condition.In, []any{[]int{}}, true},
		{"InNilElement", condition.NotIn, []any{1, nil}, true},
		{"BetweenTwo", condition.Between, []any{1, 5}, false},
		{"BetweenSlice", condition.Between, []any{[]int{1, 5}}, false},
		{"BetweenOne", condition.Between, []any{1}, true},
		{"IsNull", condition.IsNull, nil, false},
		{"IsNullWithValue", condition.IsNull, []any{1}, true},
		{"LikeString", condition.Like, []any{"a%"}, false},
		{"LikeInt", condition.Like, []any{1}, true},
		{"UnknownOperator", condition.Operator(99), []any{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := condition.NewLeaf("age", tt.op, tt.values...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, sqlcore.IsInvalidCondition(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewLeafEmptyField(t *testing.T) {
	_, err := condition.NewLeaf("  ", condition.Equal, 1)
	require.Error(t, err)
	assert.True(t, sqlcore.IsInvalidCondition(err))
}

func TestNewLeafNilEquality(t *testing.T) {
	l, err := condition.NewLeaf("deleted_at", condition.Equal, nil)
	require.NoError(t, err)
	assert.Equal(t, condition.IsNull, l.Operator())
	assert.Empty(t, l.Values())

	l, err = condition.NewLeaf("deleted_at", condition.NotEqual, nil)
	require.NoError(t, err)
	assert.Equal(t, condition.IsNotNull, l.Operator())
}

func TestLeafImmutable(t *testing.T) {
	in := []any{1, 2}
	l := condition.MustLeaf("id", condition.In, in...)
	in[0] = 99
	got := l.Values()
	assert.Equal(t, []any{1, 2}, got)
	got[1] = 42
	assert.Equal(t, []any{1, 2}, l.Values())
}

func TestGroup(t *testing.T) {
	a := condition.MustLeaf("a", condition.Equal, 1)
	b := condition.MustLeaf("b", condition.Equal, 2)
	g := condition.AnyOf(a, nil, b)
	assert.Equal(t, condition.Or, g.Conjunction())
	assert.Equal(t, 2, g.Len())

	children := g.Children()
	children[0] = b
	assert.Same(t, a, g.Children()[0])

	assert.True(t, condition.Empty().IsEmpty())
	assert.Equal(t, "(a = 1 OR b = 2)", g.String())
}

func TestRoot(t *testing.T) {
	l := condition.MustLeaf("a", condition.Equal, 1)
	r := condition.Root(l)
	assert.Equal(t, condition.And, r.Conjunction())
	assert.Equal(t, 1, r.Len())

	g := condition.AnyOf(l)
	assert.Same(t, g, condition.Root(g))
	assert.True(t, condition.Root(nil).IsEmpty())
}

func TestNot(t *testing.T) {
	t.Run("Operators", func(t *testing.T) {
		pairs := map[condition.Operator]condition.Operator{
			condition.Equal:              condition.NotEqual,
			condition.LessThan:           condition.GreaterThanOrEqual,
			condition.LessThanOrEqual:    condition.GreaterThan,
			condition.Like:               condition.NotLike,
			condition.In:                 condition.NotIn,
			condition.IsNull:             condition.IsNotNull,
			condition.GreaterThanOrEqual: condition.LessThan,
		}
		for op, want := range pairs {
			got, ok := op.Negate()
			require.True(t, ok)
			assert.Equal(t, want, got)
			back, _ := got.Negate()
			assert.Equal(t, op, back)
		}
	})

	t.Run("Between", func(t *testing.T) {
		n, err := condition.Not(condition.MustLeaf("age", condition.Between, 18, 65))
		require.NoError(t, err)
		assert.Equal(t, "(age < 18 OR age > 65)", n.String())
	})

	t.Run("DeMorgan", func(t *testing.T) {
		g := condition.AllOf(
			condition.MustLeaf("a", condition.Equal, 1),
			condition.AnyOf(
				condition.MustLeaf("b", condition.GreaterThan, 2),
				condition.MustLeaf("c", condition.IsNull),
			),
		)
		n, err := condition.Not(g)
		require.NoError(t, err)
		assert.Equal(t, "(a <> 1 OR (b <= 2 AND c IS NOT NULL))", n.String())
		assert.Equal(t, "(a = 1 AND (b > 2 OR c IS NULL))", g.String())
	})

	t.Run("EmptyGroup", func(t *testing.T) {
		_, err := condition.Not(condition.Empty())
		require.Error(t, err)
		assert.True(t, sqlcore.IsUnsupportedPredicate(err))
	})
}

func TestParseOperator(t *testing.T) {
	for in, want := range map[string]condition.Operator{
		"Equal":       condition.Equal,
		"=":           condition.Equal,
		"!=":          condition.NotEqual,
		"not like":    condition.NotLike,
		"is not null": condition.IsNotNull,
		"gte":         condition.GreaterThanOrEqual,
		"between":     condition.Between,
	} {
		got, err := condition.ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := condition.ParseOperator("~=")
	require.Error(t, err)
}

func TestJSON(t *testing.T) {
	g := condition.AllOf(
		condition.MustLeaf("age", condition.GreaterThan, 18),
		condition.AnyOf(
			condition.MustLeaf("name", condition.Like, "A%"),
			condition.MustLeaf("score", condition.Between, 1.5, 3),
		),
		condition.MustLeaf("deleted_at", condition.IsNull),
	)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"and":[
		{"field":"age","op":"GreaterThan","values":[18]},
		{"or":[{"field":"name","op":"Like","values":["A%"]},{"field":"score","op":"Between","values":[1.5,3]}]},
		{"field":"deleted_at","op":"IsNull"}
	]}`, string(data))

	back, err := condition.ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, g.String(), back.String())

	leaf := back.Children()[0].(*condition.Leaf)
	assert.Equal(t, int64(18), leaf.Value())
	score := back.Children()[1].(*condition.Group).Children()[1].(*condition.Leaf)
	assert.Equal(t, []any{1.5, int64(3)}, score.Values())
}

func TestParseJSONErrors(t *testing.T) {
	tests := map[string]string{
		"BothConjunctions": `{"and":[],"or":[]}`,
		"BadOperator":      `{"field":"a","op":"Nope","values":[1]}`,
		"BadArity":         `{"field":"a","op":"Between","values":[1]}`,
		"UnknownKey":       `{"field":"a","op":"Equal","values":[1],"x":1}`,
		"NotObject":        `[1,2]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := condition.ParseJSON([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParseJSONLeafRoot(t *testing.T) {
	g, err := condition.ParseJSON([]byte(`{"field":"a","op":"=","values":[1]}`))
	require.NoError(t, err)
	assert.Equal(t, "(a = 1)", g.String())

	g, err = condition.ParseJSON([]byte(`{"and":[]}`))
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())
}

func TestMatch(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	name := "Alice"
	row := map[string]any{
		"age":        int32(30),
		"name":       &name,
		"nickname":   (*string)(nil),
		"score":      2.5,
		"active":     true,
		"created_at": now,
		"pattern":    "100%_done",
	}
	get := func(field string) (any, bool) {
		v, ok := row[field]
		return v, ok
	}
	tests := []struct {
		name string
		node condition.Node
		want bool
	}{
		{"Equal", condition.MustLeaf("age", condition.Equal, 30), true},
		{"EqualFloat", condition.MustLeaf("age", condition.Equal, 30.0), true},
		{"LessThan", condition.MustLeaf("score", condition.LessThan, 3), true},
		{"Between", condition.MustLeaf("age", condition.Between, 18, 30), true},
		{"In", condition.MustLeaf("name", condition.In, "Bob", "Alice"), true},
		{"NotIn", condition.MustLeaf("name", condition.NotIn, "Bob", "Alice"), false},
		{"LikePrefix", condition.MustLeaf("name", condition.Like, "Al%"), true},
		{"LikeCaseSensitive", condition.MustLeaf("name", condition.Like, "al%"), false},
		{"LikeUnderscore", condition.MustLeaf("name", condition.Like, "Al_ce"), true},
		{"LikeEscaped", condition.MustLeaf("pattern", condition.Like, `100\%\_%`), true},
		{"LikeEscapedMiss", condition.MustLeaf("name", condition.Like, `Al\%`), false},
		{"Bool", condition.MustLeaf("active", condition.Equal, true), true},
		{"Time", condition.MustLeaf("created_at", condition.LessThan, now.Add(time.Hour)), true},
		{"IsNull", condition.MustLeaf("nickname", condition.IsNull), true},
		{"NullEqual", condition.MustLeaf("nickname", condition.Equal, "x"), false},
		{"NullNotEqual", condition.MustLeaf("nickname", condition.NotEqual, "x"), false},
		{"NullNotIn", condition.MustLeaf("nickname", condition.NotIn, "x"), false},
		{"EmptyGroup", condition.Empty(), true},
		{"OrWithUnknown", condition.AnyOf(
			condition.MustLeaf("nickname", condition.Equal, "x"),
			condition.MustLeaf("age", condition.Equal, 30),
		), true},
		{"AndWithUnknown", condition.AllOf(
			condition.MustLeaf("nickname", condition.Equal, "x"),
			condition.MustLeaf("age", condition.Equal, 30),
		), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := condition.Match(tt.node, get)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("UnknownField", func(t *testing.T) {
		_, err := condition.Match(condition.MustLeaf("missing", condition.Equal, 1), get)
		require.Error(t, err)
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		_, err := condition.Match(condition.MustLeaf("age", condition.Equal, "thirty"), get)
		require.Error(t, err)
	})
}

func TestWalk(t *testing.T) {
	g := condition.AllOf(
		condition.MustLeaf("a", condition.Equal, 1),
		condition.AnyOf(condition.MustLeaf("b", condition.Equal, 2), condition.MustLeaf("c", condition.Equal, 3)),
	)
	var fields []string
	require.NoError(t, condition.Walk(g, func(l *condition.Leaf) error {
		fields = append(fields, l.Field())
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, fields)
}
