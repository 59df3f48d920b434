package schema

import (
	"fmt"
	"reflect"

	"golang.org/x/text/cases"

	"github.com/syssam/sqlcore"
)

// Column describes one mapped column.
type Column struct {
	Name       string       // logical name
	Physical   string       // column name in the database
	PrimaryKey bool
	Identity   bool         // value generated by the database on insert
	Type       reflect.Type // Go type of the field; nil for inspected tables
	DBType     string       // database type of inspected columns
	Nullable   bool         // inspected column accepts NULL

	index []int
}

// Table is the resolved, immutable description of a table.
type Table struct {
	name    string
	typ     reflect.Type
	columns []Column
	lookup  map[string]int
}

// NewTable returns a table after checking that column names are unique and
// that at most one column is an identity.
func NewTable(name string, typ reflect.Type, columns ...Column) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: table name is empty")
	}
	t := &Table{
		name:    name,
		typ:     typ,
		columns: make([]Column, 0, len(columns)),
		lookup:  make(map[string]int, 2*len(columns)),
	}
	identity := ""
	for _, c := range columns {
		if c.Physical == "" {
			c.Physical = c.Name
		}
		if c.Name == "" {
			c.Name = c.Physical
		}
		if c.Name == "" {
			return nil, fmt.Errorf("schema: table %q has an unnamed column", name)
		}
		if c.Identity {
			if identity != "" {
				return nil, fmt.Errorf("schema: table %q has more than one identity column (%s, %s)", name, identity, c.Name)
			}
			identity = c.Name
		}
		pos := len(t.columns)
		for _, key := range []string{fold(c.Name), fold(c.Physical)} {
			if prev, ok := t.lookup[key]; ok && prev != pos {
				return nil, fmt.Errorf("schema: table %q has duplicate column %q", name, c.Name)
			}
			t.lookup[key] = pos
		}
		t.columns = append(t.columns, c)
	}
	return t, nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Type returns the entity type the table was resolved from, or nil.
func (t *Table) Type() reflect.Type { return t.typ }

// Columns returns a copy of the columns in declaration order.
func (t *Table) Columns() []Column { return append([]Column(nil), t.columns...) }

// Column looks up a column by logical or physical name, ignoring case.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.lookup[fold(name)]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// MustColumn is like Column but returns an UnknownFieldError.
func (t *Table) MustColumn(name string) (Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return Column{}, sqlcore.NewUnknownFieldError(t.name, name)
	}
	return c, nil
}

// PrimaryKeys returns the primary key columns, possibly none.
func (t *Table) PrimaryKeys() []Column {
	var keys []Column
	for _, c := range t.columns {
		if c.PrimaryKey {
			keys = append(keys, c)
		}
	}
	return keys
}

// Identity returns the identity column, if any.
func (t *Table) Identity() (Column, bool) {
	for _, c := range t.columns {
		if c.Identity {
			return c, true
		}
	}
	return Column{}, false
}

// Values returns the field values of entity keyed by logical column name.
// entity must be of the table type or a pointer to it.
func (t *Table) Values(entity any) (map[string]any, error) {
	rv, err := t.structValue(entity)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		values[c.Name] = rv.FieldByIndex(c.index).Interface()
	}
	return values, nil
}

// ValueOf returns the value of one field of entity.
func (t *Table) ValueOf(entity any, name string) (any, bool) {
	c, ok := t.Column(name)
	if !ok || c.index == nil {
		return nil, false
	}
	rv, err := t.structValue(entity)
	if err != nil {
		return nil, false
	}
	return rv.FieldByIndex(c.index).Interface(), true
}

// SetValue assigns v to a field of entity, converting it as a row scan would.
// entity must be a non-nil pointer.
func (t *Table) SetValue(entity any, name string, v any) error {
	c, err := t.MustColumn(name)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema: SetValue requires a non-nil pointer, got %T", entity)
	}
	if c.index == nil {
		return fmt.Errorf("schema: column %q of %q is not bound to a struct field", c.Name, t.name)
	}
	sv, err := t.structValue(entity)
	if err != nil {
		return err
	}
	return Assign(sv.FieldByIndex(c.index), v)
}

// FieldIndex returns the struct field path of a column, or nil.
func (c Column) FieldIndex() []int { return c.index }

func (t *Table) structValue(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("schema: nil %T entity for table %q", entity, t.name)
		}
		rv = rv.Elem()
	}
	if t.typ == nil || rv.Type() != t.typ {
		return reflect.Value{}, fmt.Errorf("schema: %T is not an entity of table %q", entity, t.name)
	}
	return rv, nil
}
