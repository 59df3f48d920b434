package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// TableNamer is implemented by entities that choose their own table name.
type TableNamer interface {
	TableName() string
}

// tag options of the `db` struct tag: `db:"name,pk,identity"`, `db:"-"`.
type tagOptions struct {
	name     string
	skip     bool
	pk       bool
	identity bool
	inline   bool
}

func parseTag(tag string) tagOptions {
	if tag == "-" {
		return tagOptions{skip: true}
	}
	parts := strings.Split(tag, ",")
	opts := tagOptions{name: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "pk", "primarykey", "key":
			opts.pk = true
		case "identity", "autoincrement":
			opts.identity = true
		case "inline":
			opts.inline = true
		}
	}
	return opts
}

var tableNamerType = reflect.TypeFor[TableNamer]()

// tableFromType builds a table from struct tags and naming rules. Embedded
// structs (and fields tagged inline) are flattened. When no field is tagged
// pk, a field whose column is "id" becomes the key, and an integer one also
// the identity.
func tableFromType(rt reflect.Type, naming *Naming) (*Table, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: entity type %s is not a struct", rt)
	}
	name := naming.Table(rt.Name())
	if rt.Implements(tableNamerType) {
		name = reflect.Zero(rt).Interface().(TableNamer).TableName()
	} else if reflect.PointerTo(rt).Implements(tableNamerType) {
		name = reflect.New(rt).Interface().(TableNamer).TableName()
	}
	var columns []Column
	collectColumns(rt, nil, naming, &columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("schema: entity type %s has no mapped fields", rt)
	}
	explicitKey, explicitIdentity := false, false
	for _, c := range columns {
		explicitKey = explicitKey || c.PrimaryKey
		explicitIdentity = explicitIdentity || c.Identity
	}
	if !explicitKey {
		for i := range columns {
			if !strings.EqualFold(columns[i].Physical, "id") {
				continue
			}
			columns[i].PrimaryKey = true
			if !explicitIdentity && isInteger(columns[i].Type) {
				columns[i].Identity = true
			}
			break
		}
	}
	return NewTable(name, rt, columns...)
}

func collectColumns(rt reflect.Type, parent []int, naming *Naming, columns *[]Column) {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag, hasTag := f.Tag.Lookup("db")
		opts := parseTag(tag)
		if opts.skip {
			continue
		}
		index := append(append([]int(nil), parent...), i)
		ft := f.Type
		if (f.Anonymous && !hasTag) || opts.inline {
			if ft.Kind() == reflect.Struct {
				collectColumns(ft, index, naming, columns)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		physical := opts.name
		if physical == "" {
			physical = naming.Column(f.Name)
		}
		*columns = append(*columns, Column{
			Name:       f.Name,
			Physical:   physical,
			PrimaryKey: opts.pk,
			Identity:   opts.identity,
			Type:       ft,
			index:      index,
		})
	}
}

func isInteger(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
