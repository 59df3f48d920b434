package materialize

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/schema"
)

// Entities scans every row into T, a struct type or a pointer to one.
// Columns without a matching field are dropped and fields without a column
// keep their zero value.
func Entities[T any](m *Mapper, rows *sql.Rows) ([]T, error) {
	if m == nil {
		m = Default()
	}
	rt := reflect.TypeFor[T]()
	ptr := rt.Kind() == reflect.Pointer
	st := rt
	if ptr {
		st = rt.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("materialize: %s is not a struct type", rt)
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	p, err := m.plan(st, cols)
	if err != nil {
		return nil, err
	}
	var out []T
	for rows.Next() {
		rv := reflect.New(st)
		if err := p.scanInto(rows, rv.Elem()); err != nil {
			return nil, err
		}
		if ptr {
			out = append(out, rv.Interface().(T))
		} else {
			out = append(out, rv.Elem().Interface().(T))
		}
	}
	return out, rows.Err()
}

// Row is one result row with its column names in result order.
type Row struct {
	Columns []string `msgpack:"c"`
	Values  []any    `msgpack:"v"`
}

// Get returns the value of a column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row keyed by column name.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// Dynamic scans every row into a Row keeping the result column order.
func Dynamic(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	return out, rows.Err()
}

// Scalar reads the first column of the first row as T. On an empty result
// Count yields a valid zero and the other aggregates an invalid value, as
// does a NULL aggregate.
func Scalar[T any](rows *sql.Rows, op sqlcore.Op) (sql.Null[T], error) {
	var out sql.Null[T]
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return out, err
		}
		out.Valid = op == sqlcore.OpCount
		return out, nil
	}
	var raw any
	cols, err := rows.Columns()
	if err != nil {
		return out, err
	}
	dests := make([]any, len(cols))
	dests[0] = &raw
	for i := 1; i < len(dests); i++ {
		dests[i] = new(any)
	}
	if err := rows.Scan(dests...); err != nil {
		return out, err
	}
	if raw == nil {
		out.Valid = op == sqlcore.OpCount
		return out, nil
	}
	if err := schema.Assign(reflect.ValueOf(&out.V).Elem(), raw); err != nil {
		return out, fmt.Errorf("materialize: %s result: %w", op, err)
	}
	out.Valid = true
	return out, rows.Err()
}
