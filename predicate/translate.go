package predicate

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/condition"
	"github.com/syssam/sqlcore/schema"
)

// Input is any of the accepted predicate forms: a typed P[E], a Triple,
// Triples, a Tree wrapping a condition node, or a Map of field equalities.
type Input interface{ input() }

func (P[E]) input() {}

// Triple is a single (field, operator, value) comparison. Value holds a
// slice for In, NotIn and Between and is ignored for IsNull and IsNotNull.
type Triple struct {
	Field string
	Op    condition.Operator
	Value any
}

func (Triple) input() {}

// Triples is a conjunction of comparisons.
type Triples []Triple

func (Triples) input() {}

// Tree passes an already built condition through.
type Tree struct {
	Node condition.Node
}

func (Tree) input() {}

// Map is a conjunction of equalities in sorted key order. A nil value
// compares IS NULL and a slice value compares IN.
type Map map[string]any

func (Map) input() {}

// Translate converts an input into a condition tree rooted at a group.
// A nil input selects every row.
func Translate(in Input) (*condition.Group, error) {
	switch in := in.(type) {
	case nil:
		return condition.Empty(), nil
	case translator:
		n, err := in.translate()
		if err != nil {
			return nil, err
		}
		return condition.Root(n), nil
	case Triple:
		l, err := in.leaf()
		if err != nil {
			return nil, err
		}
		return condition.AllOf(l), nil
	case Triples:
		children := make([]condition.Node, 0, len(in))
		for _, t := range in {
			l, err := t.leaf()
			if err != nil {
				return nil, err
			}
			children = append(children, l)
		}
		return condition.AllOf(children...), nil
	case Tree:
		return condition.Root(in.Node), nil
	case Map:
		keys := make([]string, 0, len(in))
		for k := range in {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		children := make([]condition.Node, 0, len(keys))
		for _, k := range keys {
			t := Triple{Field: k, Op: condition.Equal, Value: in[k]}
			if isList(in[k]) {
				t.Op = condition.In
			}
			l, err := t.leaf()
			if err != nil {
				return nil, err
			}
			children = append(children, l)
		}
		return condition.AllOf(children...), nil
	}
	return nil, sqlcore.NewUnsupportedPredicateError(fmt.Sprintf("%T", in), "unknown predicate input")
}

func (t Triple) leaf() (*condition.Leaf, error) {
	if t.Op.Valid() && t.Op.Arity() == condition.Nullary {
		return condition.NewLeaf(t.Field, t.Op)
	}
	return condition.NewLeaf(t.Field, t.Op, t.Value)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
}

type translator interface {
	translate() (condition.Node, error)
}

func (p P[E]) translate() (condition.Node, error) {
	return translateExpr(p.x)
}

func translateExpr(x expr) (condition.Node, error) {
	switch x := x.(type) {
	case nil:
		return nil, sqlcore.NewUnsupportedPredicateError("nil predicate", "")
	case always:
		return condition.Empty(), nil
	case opaque:
		return nil, sqlcore.NewUnsupportedPredicateError("opaque function", x.name)
	case cmp:
		values, err := operandValues(x.operand)
		if err != nil {
			return nil, err
		}
		return condition.NewLeaf(x.field, x.op, values...)
	case logic:
		children := make([]condition.Node, 0, len(x.items))
		for _, item := range x.items {
			n, err := translateExpr(item)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return condition.NewGroup(x.conj, children...), nil
	case not:
		n, err := translateExpr(x.x)
		if err != nil {
			return nil, err
		}
		return condition.Not(n)
	}
	return nil, sqlcore.NewUnsupportedPredicateError(fmt.Sprintf("%T", x), "")
}

func operandValues(o Operand) ([]any, error) {
	switch o := o.(type) {
	case literal:
		return o.values, nil
	case captured:
		return []any{o.fn()}, nil
	case fieldRef:
		return nil, sqlcore.NewUnsupportedPredicateError("field comparison", o.entity+"."+o.field)
	case call:
		return nil, sqlcore.NewUnsupportedPredicateError("non-deterministic call", o.name)
	}
	return nil, sqlcore.NewUnsupportedPredicateError("nil operand", "")
}

// resolver binds entity types for in-memory evaluation.
var resolver = schema.NewResolver()

// Eval evaluates p against a single entity with SQL three-valued semantics,
// where UNKNOWN counts as no match.
func (p P[E]) Eval(e E) (bool, error) {
	g, err := Translate(p)
	if err != nil {
		return false, err
	}
	t, err := resolver.ResolveType(reflect.TypeFor[E]())
	if err != nil {
		return false, err
	}
	return condition.Match(g, getter(t, e))
}

// Filter returns the entities of es matching p, preserving order.
func Filter[E any](p P[E], es []E) ([]E, error) {
	g, err := Translate(p)
	if err != nil {
		return nil, err
	}
	t, err := resolver.ResolveType(reflect.TypeFor[E]())
	if err != nil {
		return nil, err
	}
	var out []E
	for _, e := range es {
		ok, err := condition.Match(g, getter(t, e))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func getter(t *schema.Table, e any) condition.Getter {
	return func(field string) (any, bool) {
		return t.ValueOf(e, field)
	}
}
