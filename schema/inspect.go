package schema

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/sqlcore/dialect"
)

// AtlasInspector reads table definitions from a live database through the
// atlas inspection drivers.
type AtlasInspector struct {
	dialect string
	driver  atlas.Inspector
}

// NewInspector opens an atlas inspector for the dialect over db.
// MySQL and Postgres query the server version while opening.
func NewInspector(dialectName string, db atlas.ExecQuerier) (*AtlasInspector, error) {
	d, err := dialect.Get(dialectName)
	if err != nil {
		return nil, err
	}
	var drv atlas.Inspector
	switch d.Name() {
	case dialect.Postgres:
		drv, err = postgres.Open(db)
	case dialect.MySQL:
		drv, err = mysql.Open(db)
	case dialect.SQLite:
		drv, err = sqlite.Open(db)
	default:
		return nil, fmt.Errorf("schema: inspection is not supported for %s", d.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("schema: open %s inspector: %w", d.Name(), err)
	}
	return &AtlasInspector{dialect: d.Name(), driver: drv}, nil
}

// InspectTable returns the table named name, which may be schema-qualified
// ("public.users"). Column logical names equal their physical names.
func (i *AtlasInspector) InspectTable(ctx context.Context, name string) (*Table, error) {
	schemaName, tableName := "", name
	if s, t, ok := strings.Cut(name, "."); ok {
		schemaName, tableName = s, t
	}
	s, err := i.driver.InspectSchema(ctx, schemaName, &atlas.InspectOptions{
		Mode:   atlas.InspectTables,
		Tables: []string{tableName},
	})
	if err != nil {
		return nil, err
	}
	at, ok := s.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("schema: table %q does not exist", name)
	}
	return i.convert(name, at)
}

func (i *AtlasInspector) convert(name string, at *atlas.Table) (*Table, error) {
	keys := make(map[*atlas.Column]bool)
	if at.PrimaryKey != nil {
		for _, p := range at.PrimaryKey.Parts {
			if p.C != nil {
				keys[p.C] = true
			}
		}
	}
	columns := make([]Column, 0, len(at.Columns))
	for _, c := range at.Columns {
		col := Column{
			Name:       c.Name,
			Physical:   c.Name,
			PrimaryKey: keys[c],
			Identity:   i.isIdentity(at, c, len(keys)),
		}
		if c.Type != nil {
			col.DBType = c.Type.Raw
			col.Nullable = c.Type.Null
		}
		columns = append(columns, col)
	}
	return NewTable(name, nil, columns...)
}

func (i *AtlasInspector) isIdentity(at *atlas.Table, c *atlas.Column, keys int) bool {
	for _, a := range c.Attrs {
		switch a.(type) {
		case *sqlite.AutoIncrement, *mysql.AutoIncrement, *postgres.Identity:
			return true
		}
	}
	if c.Type != nil {
		if _, ok := c.Type.Type.(*postgres.SerialType); ok {
			return true
		}
	}
	// A lone INTEGER primary key aliases the SQLite rowid.
	if i.dialect == dialect.SQLite && keys == 1 && at.PrimaryKey != nil && at.PrimaryKey.Parts[0].C == c && c.Type != nil {
		return strings.EqualFold(c.Type.Raw, "integer")
	}
	return false
}
