package predicate

import (
	"reflect"

	"github.com/syssam/sqlcore/condition"
)

// P is a typed boolean predicate over entities of type E. The zero value is
// a nil predicate and does not translate.
type P[E any] struct {
	x expr
}

// expr is the structure recorded by predicate constructors.
type expr interface{ expr() }

type (
	// cmp compares a field against an operand.
	cmp struct {
		field   string
		op      condition.Operator
		operand Operand
	}
	// logic joins predicates with a conjunction.
	logic struct {
		conj  condition.Conjunction
		items []expr
	}
	// not negates a predicate.
	not struct{ x expr }
	// always matches every row.
	always struct{}
	// opaque wraps a Go function the database cannot evaluate.
	opaque struct{ name string }
)

func (cmp) expr()    {}
func (logic) expr()  {}
func (not) expr()    {}
func (always) expr() {}
func (opaque) expr() {}

// And returns a predicate matching when all ps match.
func And[E any](ps ...P[E]) P[E] {
	return P[E]{x: logic{conj: condition.And, items: exprs(ps)}}
}

// Or returns a predicate matching when any of ps matches.
func Or[E any](ps ...P[E]) P[E] {
	return P[E]{x: logic{conj: condition.Or, items: exprs(ps)}}
}

// Not returns the negation of p.
func Not[E any](p P[E]) P[E] {
	return P[E]{x: not{x: p.x}}
}

// True returns a predicate matching every row.
func True[E any]() P[E] {
	return P[E]{x: always{}}
}

// Opaque wraps an arbitrary Go function. Such predicates cannot be
// translated to SQL; translation fails naming the function.
func Opaque[E any](name string, _ func(E) bool) P[E] {
	return P[E]{x: opaque{name: name}}
}

// And returns p AND q.
func (p P[E]) And(q ...P[E]) P[E] {
	return And(append([]P[E]{p}, q...)...)
}

// Or returns p OR q.
func (p P[E]) Or(q ...P[E]) P[E] {
	return Or(append([]P[E]{p}, q...)...)
}

// Not returns NOT p.
func (p P[E]) Not() P[E] {
	return Not(p)
}

// IsNil reports whether p is the zero predicate.
func (p P[E]) IsNil() bool {
	return p.x == nil
}

func exprs[E any](ps []P[E]) []expr {
	out := make([]expr, len(ps))
	for i, p := range ps {
		out[i] = p.x
	}
	return out
}

// Operand is the right-hand side of a comparison.
type Operand interface{ operand() }

type (
	literal  struct{ values []any }
	captured struct{ fn func() any }
	fieldRef struct{ entity, field string }
	call     struct{ name string }
)

func (literal) operand()  {}
func (captured) operand() {}
func (fieldRef) operand() {}
func (call) operand()     {}

// Lit returns a literal operand.
func Lit(values ...any) Operand {
	return literal{values: values}
}

// Captured returns an operand read from fn once, when the predicate is translated.
func Captured[T any](fn func() T) Operand {
	return captured{fn: func() any { return fn() }}
}

// Ref returns an operand naming another field. Field-to-field comparisons
// have no condition form and fail translation.
func Ref(entity, field string) Operand {
	return fieldRef{entity: entity, field: field}
}

// Now returns an operand evaluated by the database clock. It is
// non-deterministic and fails translation.
func Now() Operand {
	return call{name: "now()"}
}

// entityName returns the type name of E for error messages.
func entityName[E any]() string {
	t := reflect.TypeFor[E]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
