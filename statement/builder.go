package statement

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/condition"
	"github.com/syssam/sqlcore/dialect"
	"github.com/syssam/sqlcore/schema"
)

// Builder compiles operations into dialect-specific statements.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	dialect dialect.Strategy
}

// NewBuilder returns a builder for the dialect.
func NewBuilder(d dialect.Strategy) *Builder {
	return &Builder{dialect: d}
}

// Dialect returns the dialect strategy of the builder.
func (b *Builder) Dialect() dialect.Strategy {
	return b.dialect
}

var aggregates = map[sqlcore.Op]string{
	sqlcore.OpSum:     "SUM",
	sqlcore.OpAverage: "AVG",
	sqlcore.OpMin:     "MIN",
	sqlcore.OpMax:     "MAX",
}

// writer accumulates statement text and parameters.
type writer struct {
	strings.Builder
	dialect  dialect.Strategy
	table    *schema.Table
	params   []Param
	filtered bool
}

func (w *writer) bind(v any) {
	n := len(w.params) + 1
	w.params = append(w.params, Param{Name: "p" + strconv.Itoa(n), Value: v})
	w.WriteString(w.dialect.Placeholder(n))
}

func (w *writer) column(field string) (string, error) {
	c, err := w.table.MustColumn(field)
	if err != nil {
		return "", err
	}
	return w.dialect.Quote(c.Physical), nil
}

// Build compiles op over table t. where may be nil or empty to match all rows.
// The same inputs always produce byte-identical SQL.
func (b *Builder) Build(op sqlcore.Op, t *schema.Table, where *condition.Group, opts Options) (*Statement, error) {
	if t == nil {
		return nil, fmt.Errorf("statement: %s requires a table", op)
	}
	w := &writer{dialect: b.dialect, table: t}
	var (
		err  error
		stmt = &Statement{Op: op, Table: t.Name(), Dialect: b.dialect.Name()}
	)
	switch {
	case op == sqlcore.OpSelect:
		err = w.selectRows(where, opts)
	case op.IsAggregate():
		err = w.aggregate(op, where, opts)
	case op == sqlcore.OpDelete:
		w.WriteString("DELETE FROM " + b.dialect.Quote(t.Name()))
		err = w.where(where)
	case op == sqlcore.OpUpdate:
		err = w.update(where, opts)
	case op == sqlcore.OpInsert, op == sqlcore.OpInsertMany:
		err = w.insert(op, stmt, opts)
	case op == sqlcore.OpUpsert:
		err = w.upsert(stmt, opts)
	default:
		err = fmt.Errorf("statement: unsupported operation %s", op)
	}
	if err != nil {
		return nil, err
	}
	stmt.SQL = w.String()
	stmt.Params = w.params
	stmt.Filtered = w.filtered
	return stmt, nil
}

// from returns the quoted table reference and a statement prefix for hints.
func (w *writer) from(hints string) (string, string, error) {
	ref := w.dialect.Quote(w.table.Name())
	if hints == "" {
		return ref, "", nil
	}
	if !dialect.ValidHint(hints) {
		return "", "", fmt.Errorf("statement: invalid table hint %q", hints)
	}
	ref, prefix := w.dialect.TableHint(ref, hints)
	return ref, prefix, nil
}

func (w *writer) selectRows(where *condition.Group, opts Options) error {
	ref, prefix, err := w.from(opts.Hints)
	if err != nil {
		return err
	}
	w.WriteString(prefix + "SELECT ")
	if len(opts.Fields) == 0 {
		for i, c := range w.table.Columns() {
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteString(w.dialect.Quote(c.Physical))
		}
	} else {
		for i, f := range opts.Fields {
			col, err := w.column(f)
			if err != nil {
				return err
			}
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteString(col)
		}
	}
	w.WriteString(" FROM " + ref)
	if err := w.where(where); err != nil {
		return err
	}
	if len(opts.OrderBy) > 0 {
		w.WriteString(" ORDER BY ")
		for i, o := range opts.OrderBy {
			col, err := w.column(o.Field)
			if err != nil {
				return err
			}
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteString(col)
			if o.Desc {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
		}
	}
	w.dialect.Paging(&w.Builder, opts.Limit, opts.Offset, len(opts.OrderBy) > 0)
	return nil
}

// aggregate writes COUNT/SUM/AVG/MIN/MAX. Ordering and paging do not apply.
func (w *writer) aggregate(op sqlcore.Op, where *condition.Group, opts Options) error {
	ref, prefix, err := w.from(opts.Hints)
	if err != nil {
		return err
	}
	var expr string
	switch {
	case op == sqlcore.OpCount && len(opts.Fields) == 0:
		expr = "COUNT(*)"
	case len(opts.Fields) == 1:
		col, err := w.column(opts.Fields[0])
		if err != nil {
			return err
		}
		fn := aggregates[op]
		if op == sqlcore.OpCount {
			fn = "COUNT"
		}
		expr = fn + "(" + col + ")"
	default:
		return sqlcore.NewAggregateArityError(op, w.table.Name(), len(opts.Fields))
	}
	w.WriteString(prefix + "SELECT " + expr + " FROM " + ref)
	return w.where(where)
}

func (w *writer) update(where *condition.Group, opts Options) error {
	rows, err := w.rows(opts.Rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("statement: Update on %q requires a row of values", w.table.Name())
	}
	cols, err := w.writeColumns(sqlcore.OpUpdate, opts.Fields, rows[0])
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("statement: Update on %q has no columns to set", w.table.Name())
	}
	w.WriteString("UPDATE " + w.dialect.Quote(w.table.Name()) + " SET ")
	for i, c := range cols {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(w.dialect.Quote(c.Physical) + " = ")
		w.bind(rows[0][c.Name])
	}
	return w.where(where)
}

func (w *writer) insert(op sqlcore.Op, stmt *Statement, opts Options) error {
	rows, err := w.rows(opts.Rows)
	if err != nil {
		return err
	}
	switch {
	case len(rows) == 0:
		return fmt.Errorf("statement: %s on %q requires at least one row", op, w.table.Name())
	case op == sqlcore.OpInsert && len(rows) > 1:
		return fmt.Errorf("statement: Insert on %q takes one row, got %d", w.table.Name(), len(rows))
	}
	cols, err := w.writeColumns(op, opts.Fields, rows[0])
	if err != nil {
		return err
	}
	output, returning := w.identity(stmt, cols)
	w.WriteString("INSERT INTO " + w.dialect.Quote(w.table.Name()))
	if len(cols) == 0 {
		if len(rows) > 1 {
			return fmt.Errorf("statement: %s on %q has no columns to write", op, w.table.Name())
		}
		w.WriteString(output + w.dialect.DefaultValues() + returning)
		return nil
	}
	w.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(w.dialect.Quote(c.Physical))
	}
	w.WriteString(")" + output + " VALUES ")
	for r, row := range rows {
		if r > 0 {
			w.WriteString(", ")
		}
		w.WriteByte('(')
		for i, c := range cols {
			if i > 0 {
				w.WriteString(", ")
			}
			w.bind(row[c.Name])
		}
		w.WriteByte(')')
	}
	w.WriteString(returning)
	return nil
}

// identity records the generated key of an insert that does not write the
// identity column and returns the dialect clauses returning it.
func (w *writer) identity(stmt *Statement, cols []schema.Column) (output, returning string) {
	id, ok := w.table.Identity()
	if !ok {
		return "", ""
	}
	for _, c := range cols {
		if c.Name == id.Name {
			return "", ""
		}
	}
	stmt.Identity = id.Physical
	output, returning = w.dialect.Returning(w.dialect.Quote(id.Physical))
	stmt.Returns = output != "" || returning != ""
	return output, returning
}

// upsert writes an insert-or-update. An identity column is written only
// when it is a match column and every row carries a key; rows without keys
// are plain inserts so the database generates them.
func (w *writer) upsert(stmt *Statement, opts Options) error {
	rows, err := w.rows(opts.Rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("statement: Upsert on %q requires at least one row", w.table.Name())
	}
	var qualifiers []schema.Column
	if len(opts.Qualifiers) > 0 {
		for _, q := range opts.Qualifiers {
			c, err := w.table.MustColumn(q)
			if err != nil {
				return err
			}
			qualifiers = append(qualifiers, c)
		}
	} else {
		qualifiers = w.table.PrimaryKeys()
	}
	if len(qualifiers) == 0 {
		return sqlcore.NewMissingKeyError(w.table.Name(), sqlcore.OpUpsert)
	}
	id, hasID := w.table.Identity()
	if hasID && containsColumn(qualifiers, id) {
		fresh := 0
		for _, row := range rows {
			if isZero(row[id.Name]) {
				fresh++
			}
		}
		switch {
		case fresh == len(rows):
			qualifiers = removeColumn(qualifiers, id)
			if len(qualifiers) == 0 {
				opts.Rows = rows
				return w.insert(sqlcore.OpUpsert, stmt, opts)
			}
		case fresh > 0:
			return fmt.Errorf("statement: Upsert on %q mixes rows with and without %q", w.table.Name(), id.Name)
		}
	}
	cols, err := w.writeColumns(sqlcore.OpUpsert, opts.Fields, rows[0])
	if err != nil {
		return err
	}
	// Match columns are written so the conflict target can match.
	for _, q := range qualifiers {
		if !containsColumn(cols, q) {
			cols = append(cols, q)
		}
	}
	u := &dialect.Upsert{Table: w.dialect.Quote(w.table.Name())}
	for _, c := range cols {
		u.Columns = append(u.Columns, w.dialect.Quote(c.Physical))
		if !containsColumn(qualifiers, c) && !c.Identity {
			u.Updates = append(u.Updates, w.dialect.Quote(c.Physical))
		}
	}
	for _, q := range qualifiers {
		u.Qualifiers = append(u.Qualifiers, w.dialect.Quote(q.Physical))
	}
	for _, row := range rows {
		tuple := make([]string, len(cols))
		for i, c := range cols {
			n := len(w.params) + 1
			w.params = append(w.params, Param{Name: "p" + strconv.Itoa(n), Value: row[c.Name]})
			tuple[i] = w.dialect.Placeholder(n)
		}
		u.Rows = append(u.Rows, tuple)
	}
	if hasID {
		stmt.Identity = id.Physical
		if containsColumn(cols, id) {
			u.Generated = w.dialect.Quote(id.Physical)
		}
		if output, returning := w.dialect.Returning(w.dialect.Quote(id.Physical)); output != "" || returning != "" {
			u.Returning = w.dialect.Quote(id.Physical)
			stmt.Returns = true
		}
	}
	w.WriteString(w.dialect.Upsert(u))
	return nil
}

// rows normalizes row keys to logical column names.
func (w *writer) rows(in []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, len(in))
	for i, row := range in {
		norm := make(map[string]any, len(row))
		for k, v := range row {
			c, err := w.table.MustColumn(k)
			if err != nil {
				return nil, err
			}
			norm[c.Name] = v
		}
		out[i] = norm
	}
	return out, nil
}

// writeColumns returns the columns written by op. Explicit fields are
// resolved as given; otherwise the defaults of the operation are filtered
// to the columns present in the first row.
func (w *writer) writeColumns(op sqlcore.Op, fields []string, row map[string]any) ([]schema.Column, error) {
	if len(fields) > 0 {
		cols := make([]schema.Column, 0, len(fields))
		for _, f := range fields {
			c, err := w.table.MustColumn(f)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		return cols, nil
	}
	var cols []schema.Column
	for _, c := range w.table.Columns() {
		if c.Identity || (op == sqlcore.OpUpdate && c.PrimaryKey) {
			continue
		}
		if _, ok := row[c.Name]; !ok {
			continue
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func removeColumn(cols []schema.Column, c schema.Column) []schema.Column {
	out := make([]schema.Column, 0, len(cols))
	for _, x := range cols {
		if x.Name != c.Name {
			out = append(out, x)
		}
	}
	return out
}

// isZero reports whether v is nil or the zero value of its type.
func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}

func containsColumn(cols []schema.Column, c schema.Column) bool {
	for _, x := range cols {
		if x.Name == c.Name {
			return true
		}
	}
	return false
}

// KeyCondition returns the primary-key condition selecting the row of the
// given values, keyed by logical or physical name. op names the operation
// in a MissingKeyError.
func KeyCondition(op sqlcore.Op, t *schema.Table, values map[string]any) (*condition.Group, error) {
	keys := t.PrimaryKeys()
	if len(keys) == 0 {
		return nil, sqlcore.NewMissingKeyError(t.Name(), op)
	}
	leaves := make([]condition.Node, 0, len(keys))
	for _, k := range keys {
		v, ok := values[k.Name]
		if !ok {
			v, ok = values[k.Physical]
		}
		if !ok {
			return nil, sqlcore.NewInvalidConditionError(k.Name, condition.Equal.String(), "key value is missing")
		}
		l, err := condition.NewLeaf(k.Name, condition.Equal, v)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return condition.AllOf(leaves...), nil
}
