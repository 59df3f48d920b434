package materialize

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/sqlcore/schema"
)

// Mapper owns the scan plans of entity types. Plans are compiled once per
// (type, column signature) and never evicted.
type Mapper struct {
	resolver *schema.Resolver
	plans    sync.Map // planKey -> *plan
}

// NewMapper returns a Mapper resolving entity types with r.
// A nil resolver gets a private one.
func NewMapper(r *schema.Resolver) *Mapper {
	if r == nil {
		r = schema.NewResolver()
	}
	return &Mapper{resolver: r}
}

var (
	defaultMapper     *Mapper
	defaultMapperOnce sync.Once
)

// Default returns the package-level mapper.
func Default() *Mapper {
	defaultMapperOnce.Do(func() { defaultMapper = NewMapper(nil) })
	return defaultMapper
}

type planKey struct {
	rt    reflect.Type
	hash  uint64 // FNV-1a of normalized columns
	ncols int
}

// plan maps result columns to struct field paths. A nil path drops the column.
type plan struct {
	paths [][]int
}

// Plans returns the number of compiled plans.
func (m *Mapper) Plans() int {
	n := 0
	m.plans.Range(func(any, any) bool { n++; return true })
	return n
}

func (m *Mapper) plan(rt reflect.Type, cols []string) (*plan, error) {
	h := fnv.New64a()
	for _, c := range cols {
		_, _ = h.Write([]byte(normalizeColumn(c)))
		_, _ = h.Write([]byte{0})
	}
	key := planKey{rt: rt, hash: h.Sum64(), ncols: len(cols)}
	if v, ok := m.plans.Load(key); ok {
		return v.(*plan), nil
	}
	t, err := m.resolver.ResolveType(rt)
	if err != nil {
		return nil, err
	}
	p := &plan{paths: make([][]int, len(cols))}
	for i, c := range cols {
		if col, ok := t.Column(normalizeColumn(c)); ok {
			p.paths[i] = col.FieldIndex()
		}
	}
	actual, _ := m.plans.LoadOrStore(key, p)
	return actual.(*plan), nil
}

// scanInto scans the current row into the struct rv using p.
func (p *plan) scanInto(rows *sql.Rows, rv reflect.Value) error {
	raw := make([]any, len(p.paths))
	dests := make([]any, len(p.paths))
	for i := range raw {
		dests[i] = &raw[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return err
	}
	for i, path := range p.paths {
		if path == nil {
			continue
		}
		if err := schema.Assign(fieldByPathAlloc(rv, path), raw[i]); err != nil {
			return fmt.Errorf("materialize: column %d into %s: %w", i, rv.Type(), err)
		}
	}
	return nil
}

// fieldByPathAlloc walks path, allocating nil embedded pointers.
func fieldByPathAlloc(v reflect.Value, path []int) reflect.Value {
	for _, i := range path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// normalizeColumn strips identifier quotes and a table qualifier.
func normalizeColumn(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	if l := len(s); l >= 2 {
		switch {
		case s[0] == '"' && s[l-1] == '"', s[0] == '`' && s[l-1] == '`', s[0] == '[' && s[l-1] == ']':
			s = s[1 : l-1]
		}
	}
	return s
}
