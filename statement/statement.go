package statement

import (
	"strings"

	"github.com/syssam/sqlcore"
)

// Param is a named statement parameter. Names run p1..pn in placeholder order.
type Param struct {
	Name  string
	Value any
}

// Statement is a built, parameterized SQL statement.
type Statement struct {
	Op      sqlcore.Op
	Table   string
	Dialect string
	SQL     string
	Params  []Param

	// Filtered reports whether the statement has a WHERE clause.
	Filtered bool

	// Identity is the physical identity column generated by an insert or
	// upsert, empty when the statement writes no generated key.
	Identity string

	// Returns reports whether executing the statement yields one row of
	// Identity per written row. When false and Identity is set, the
	// generated key is read from LastInsertId.
	Returns bool
}

// Args returns the parameter values in placeholder order.
func (s *Statement) Args() []any {
	args := make([]any, len(s.Params))
	for i, p := range s.Params {
		args[i] = p.Value
	}
	return args
}

// Preview returns the shortened statement text used in errors and logs.
func (s *Statement) Preview() string {
	return sqlcore.Preview(s.SQL)
}

// String returns the statement text.
func (s *Statement) String() string {
	return s.SQL
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Asc returns an ascending order term.
func Asc(field string) Order { return Order{Field: field} }

// Desc returns a descending order term.
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// String returns the term as "field ASC" or "field DESC".
func (o Order) String() string {
	if o.Desc {
		return o.Field + " DESC"
	}
	return o.Field + " ASC"
}

// OrderString joins order terms for cache keys and logs.
func OrderString(orders []Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}

// Options carries the per-operation inputs of Build.
type Options struct {
	// Fields selects the columns read, aggregated or written, by logical
	// or physical name. Empty means the operation default.
	Fields []string

	OrderBy []Order
	Limit   int
	Offset  int

	// Hints is a dialect table hint applied to reads.
	Hints string

	// Qualifiers are the match fields of an upsert; the primary key when empty.
	Qualifiers []string

	// Rows holds the values written by insert, update and upsert, keyed by
	// logical or physical name. Update reads Rows[0].
	Rows []map[string]any
}
