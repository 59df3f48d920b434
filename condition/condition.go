package condition

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/sqlcore"
)

// Node is a condition tree node: a *Leaf or a *Group.
type Node interface {
	fmt.Stringer
	node()
}

// Leaf compares one field against zero or more values.
// A Leaf is immutable once constructed.
type Leaf struct {
	field  string
	op     Operator
	values []any
}

// NewLeaf returns a validated leaf. For In, NotIn and Between a single slice
// argument is expanded into its elements; []byte is always a scalar.
// Equal and NotEqual against nil become IsNull and IsNotNull.
func NewLeaf(field string, op Operator, values ...any) (*Leaf, error) {
	if !op.Valid() {
		return nil, sqlcore.NewInvalidConditionError(field, op.String(), "unknown operator")
	}
	if strings.TrimSpace(field) == "" {
		return nil, sqlcore.NewInvalidConditionError("", op.String(), "field name is empty")
	}
	if len(values) == 1 && (op.Arity() == Variadic || op.Arity() == Binary) {
		if expanded, ok := expand(values[0]); ok {
			values = expanded
		}
	}
	if len(values) == 1 && values[0] == nil {
		switch op {
		case Equal:
			return &Leaf{field: field, op: IsNull}, nil
		case NotEqual:
			return &Leaf{field: field, op: IsNotNull}, nil
		}
	}
	if err := checkArity(field, op, values); err != nil {
		return nil, err
	}
	if op == Like || op == NotLike {
		if _, ok := values[0].(string); !ok {
			return nil, sqlcore.NewInvalidConditionError(field, op.String(), fmt.Sprintf("pattern must be a string, got %T", values[0]))
		}
	}
	return &Leaf{field: field, op: op, values: append([]any(nil), values...)}, nil
}

// MustLeaf is like NewLeaf but panics on error.
func MustLeaf(field string, op Operator, values ...any) *Leaf {
	l, err := NewLeaf(field, op, values...)
	if err != nil {
		panic(err)
	}
	return l
}

func checkArity(field string, op Operator, values []any) error {
	invalid := func(format string, args ...any) error {
		return sqlcore.NewInvalidConditionError(field, op.String(), fmt.Sprintf(format, args...))
	}
	switch op.Arity() {
	case Nullary:
		if len(values) != 0 {
			return invalid("takes no value, got %d", len(values))
		}
	case Unary:
		if len(values) != 1 {
			return invalid("requires 1 value, got %d", len(values))
		}
		if values[0] == nil {
			return invalid("value is nil")
		}
		if _, ok := expand(values[0]); ok {
			return invalid("requires a scalar, got %T", values[0])
		}
	case Binary:
		if len(values) != 2 {
			return invalid("requires 2 values, got %d", len(values))
		}
		if values[0] == nil || values[1] == nil {
			return invalid("bounds must not be nil")
		}
	case Variadic:
		if len(values) == 0 {
			return invalid("requires a non-empty value list")
		}
		for i, v := range values {
			if v == nil {
				return invalid("value %d is nil", i)
			}
		}
	}
	return nil
}

// expand returns the elements of a slice or array value.
func expand(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	if vs, ok := v.([]any); ok {
		return vs, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (*Leaf) node() {}

// Field returns the logical field name.
func (l *Leaf) Field() string { return l.field }

// Operator returns the comparison operator.
func (l *Leaf) Operator() Operator { return l.op }

// Values returns a copy of the compared values.
func (l *Leaf) Values() []any { return append([]any(nil), l.values...) }

// Value returns the first compared value, or nil for nullary operators.
func (l *Leaf) Value() any {
	if len(l.values) == 0 {
		return nil
	}
	return l.values[0]
}

// String returns a readable form of the leaf.
func (l *Leaf) String() string {
	switch l.op.Arity() {
	case Nullary:
		return l.field + " " + l.op.SQL()
	case Binary:
		return fmt.Sprintf("%s BETWEEN %v AND %v", l.field, l.values[0], l.values[1])
	case Variadic:
		parts := make([]string, len(l.values))
		for i, v := range l.values {
			parts[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf("%s %s (%s)", l.field, l.op.SQL(), strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%s %s %v", l.field, l.op.SQL(), l.values[0])
	}
}

// Group joins child nodes with a conjunction. An empty group matches all rows.
type Group struct {
	conj     Conjunction
	children []Node
}

// NewGroup returns a group of the given conjunction. Nil children are skipped.
func NewGroup(conj Conjunction, children ...Node) *Group {
	g := &Group{conj: conj}
	for _, c := range children {
		if c == nil || isNilNode(c) {
			continue
		}
		g.children = append(g.children, c)
	}
	return g
}

func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Leaf:
		return n == nil
	case *Group:
		return n == nil
	}
	return false
}

// AllOf returns an AND group of the children.
func AllOf(children ...Node) *Group { return NewGroup(And, children...) }

// AnyOf returns an OR group of the children.
func AnyOf(children ...Node) *Group { return NewGroup(Or, children...) }

// Empty returns a group that matches all rows.
func Empty() *Group { return &Group{conj: And} }

func (*Group) node() {}

// Conjunction returns the group conjunction.
func (g *Group) Conjunction() Conjunction { return g.conj }

// Children returns a copy of the child nodes.
func (g *Group) Children() []Node { return append([]Node(nil), g.children...) }

// Len returns the number of children.
func (g *Group) Len() int { return len(g.children) }

// IsEmpty reports whether the group has no children.
func (g *Group) IsEmpty() bool { return len(g.children) == 0 }

// String returns a readable form of the group.
func (g *Group) String() string {
	if len(g.children) == 0 {
		return "()"
	}
	parts := make([]string, len(g.children))
	for i, c := range g.children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+g.conj.String()+" ") + ")"
}

// Root wraps a node into the group form every tree root takes.
// A group is returned as-is; a leaf becomes a one-child AND group.
func Root(n Node) *Group {
	switch n := n.(type) {
	case *Group:
		if n == nil {
			return Empty()
		}
		return n
	case *Leaf:
		if n == nil {
			return Empty()
		}
		return AllOf(n)
	}
	return Empty()
}

// Not returns a node selecting the complement of n, without a negation node:
// leaf operators are negated and groups follow De Morgan's laws.
// Negating an empty group is rejected since no condition matches nothing.
func Not(n Node) (Node, error) {
	switch n := n.(type) {
	case *Leaf:
		if op, ok := n.op.Negate(); ok {
			return &Leaf{field: n.field, op: op, values: n.values}, nil
		}
		// NOT (x BETWEEN lo AND hi) is x < lo OR x > hi.
		return AnyOf(
			&Leaf{field: n.field, op: LessThan, values: []any{n.values[0]}},
			&Leaf{field: n.field, op: GreaterThan, values: []any{n.values[1]}},
		), nil
	case *Group:
		if len(n.children) == 0 {
			return nil, sqlcore.NewUnsupportedPredicateError("negated empty condition", "NOT of an always-true condition matches no rows")
		}
		children := make([]Node, len(n.children))
		for i, c := range n.children {
			nc, err := Not(c)
			if err != nil {
				return nil, err
			}
			children[i] = nc
		}
		return NewGroup(n.conj.Flip(), children...), nil
	}
	return nil, sqlcore.NewUnsupportedPredicateError("nil condition", "")
}

// Walk visits the leaves of n depth-first, left to right.
func Walk(n Node, fn func(*Leaf) error) error {
	switch n := n.(type) {
	case *Leaf:
		return fn(n)
	case *Group:
		for _, c := range n.children {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
