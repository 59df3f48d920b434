package predicate

import (
	"strings"

	"github.com/syssam/sqlcore/condition"
)

// Named is implemented by field handles.
type Named interface {
	Entity() string
	Name() string
}

// Field is a typed handle on a field of entity E holding values of type T.
//
// Usage:
//
//	var Age = predicate.Field[User, int]("age")
//	where := predicate.And(Age.GTE(18), Age.LT(65))
type Field[E, T any] string

// Name returns the field name.
func (f Field[E, T]) Name() string { return string(f) }

// Entity returns the entity type name of the field.
func (f Field[E, T]) Entity() string { return entityName[E]() }

func (f Field[E, T]) compare(op condition.Operator, values ...any) P[E] {
	return P[E]{x: cmp{field: string(f), op: op, operand: literal{values: values}}}
}

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[E, T]) EQ(v T) P[E] { return f.compare(condition.Equal, v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[E, T]) NEQ(v T) P[E] { return f.compare(condition.NotEqual, v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[E, T]) GT(v T) P[E] { return f.compare(condition.GreaterThan, v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[E, T]) GTE(v T) P[E] { return f.compare(condition.GreaterThanOrEqual, v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[E, T]) LT(v T) P[E] { return f.compare(condition.LessThan, v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[E, T]) LTE(v T) P[E] { return f.compare(condition.LessThanOrEqual, v) }

// In returns a predicate that checks if the field value is in the given list.
func (f Field[E, T]) In(vs ...T) P[E] { return f.compare(condition.In, anys(vs)...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f Field[E, T]) NotIn(vs ...T) P[E] { return f.compare(condition.NotIn, anys(vs)...) }

// Between returns a predicate that checks if lo <= field <= hi.
func (f Field[E, T]) Between(lo, hi T) P[E] { return f.compare(condition.Between, lo, hi) }

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[E, T]) IsNull() P[E] { return f.compare(condition.IsNull) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[E, T]) NotNull() P[E] { return f.compare(condition.IsNotNull) }

// EQFunc compares against a value captured from fn when the predicate is translated.
func (f Field[E, T]) EQFunc(fn func() T) P[E] { return f.CompareWith(condition.Equal, Captured(fn)) }

// GTFunc is the captured-value form of GT.
func (f Field[E, T]) GTFunc(fn func() T) P[E] {
	return f.CompareWith(condition.GreaterThan, Captured(fn))
}

// LTFunc is the captured-value form of LT.
func (f Field[E, T]) LTFunc(fn func() T) P[E] { return f.CompareWith(condition.LessThan, Captured(fn)) }

// EQField compares the field with another field. Such predicates do not translate.
func (f Field[E, T]) EQField(other Named) P[E] {
	return f.CompareWith(condition.Equal, Ref(other.Entity(), other.Name()))
}

// CompareWith returns a comparison against an arbitrary operand.
func (f Field[E, T]) CompareWith(op condition.Operator, o Operand) P[E] {
	return P[E]{x: cmp{field: string(f), op: op, operand: o}}
}

// StringField is a typed handle on a string field of entity E.
//
// Usage:
//
//	var Email = predicate.StringField[User]("email")
//	where := Email.HasSuffix("@example.com")
type StringField[E any] string

// Name returns the field name.
func (f StringField[E]) Name() string { return string(f) }

// Entity returns the entity type name of the field.
func (f StringField[E]) Entity() string { return entityName[E]() }

func (f StringField[E]) field() Field[E, string] { return Field[E, string](f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField[E]) EQ(v string) P[E] { return f.field().EQ(v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField[E]) NEQ(v string) P[E] { return f.field().NEQ(v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f StringField[E]) GT(v string) P[E] { return f.field().GT(v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f StringField[E]) GTE(v string) P[E] { return f.field().GTE(v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f StringField[E]) LT(v string) P[E] { return f.field().LT(v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f StringField[E]) LTE(v string) P[E] { return f.field().LTE(v) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField[E]) In(vs ...string) P[E] { return f.field().In(vs...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f StringField[E]) NotIn(vs ...string) P[E] { return f.field().NotIn(vs...) }

// IsNull returns a predicate that checks if the field is NULL.
func (f StringField[E]) IsNull() P[E] { return f.field().IsNull() }

// NotNull returns a predicate that checks if the field is not NULL.
func (f StringField[E]) NotNull() P[E] { return f.field().NotNull() }

// EQFunc compares against a value captured from fn when the predicate is translated.
func (f StringField[E]) EQFunc(fn func() string) P[E] { return f.field().EQFunc(fn) }

// EQField compares the field with another field. Such predicates do not translate.
func (f StringField[E]) EQField(other Named) P[E] {
	return f.field().EQField(other)
}

// Contains returns a predicate that checks if the field contains the given substring.
func (f StringField[E]) Contains(v string) P[E] {
	return f.field().compare(condition.Like, "%"+EscapeLike(v)+"%")
}

// HasPrefix returns a predicate that checks if the field has the given prefix.
func (f StringField[E]) HasPrefix(v string) P[E] {
	return f.field().compare(condition.Like, EscapeLike(v)+"%")
}

// HasSuffix returns a predicate that checks if the field has the given suffix.
func (f StringField[E]) HasSuffix(v string) P[E] {
	return f.field().compare(condition.Like, "%"+EscapeLike(v))
}

// Like returns a predicate matching a raw LIKE pattern where '\' escapes wildcards.
func (f StringField[E]) Like(pattern string) P[E] {
	return f.field().compare(condition.Like, pattern)
}

// NotLike is the negation of Like.
func (f StringField[E]) NotLike(pattern string) P[E] {
	return f.field().compare(condition.NotLike, pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE wildcards of s with '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
