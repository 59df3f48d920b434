package schema

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Inspector loads the schema of a table known only by name.
type Inspector interface {
	InspectTable(ctx context.Context, name string) (*Table, error)
}

// Resolver resolves and caches table schemas. Each key is resolved at most
// once for the lifetime of the resolver; concurrent callers of the same key
// share one resolution. It is safe for concurrent use.
type Resolver struct {
	naming    *Naming
	inspector Inspector

	types sync.Map // reflect.Type -> *Table
	names sync.Map // string -> *Table
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithInspector sets the inspector used for tables resolved by name.
func WithInspector(i Inspector) Option {
	return func(r *Resolver) { r.inspector = i }
}

// WithNaming sets the naming rules of untagged fields and types.
func WithNaming(n *Naming) Option {
	return func(r *Resolver) { r.naming = n }
}

// NewResolver returns a resolver with default naming rules.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{naming: NewNaming()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the table of an entity value or pointer.
func (r *Resolver) Resolve(entity any) (*Table, error) {
	if entity == nil {
		return nil, fmt.Errorf("schema: cannot resolve nil entity")
	}
	return r.ResolveType(reflect.TypeOf(entity))
}

// ResolveType returns the table of a struct type or pointer to one.
func (r *Resolver) ResolveType(rt reflect.Type) (*Table, error) {
	for rt.Kind() == reflect.Pointer || rt.Kind() == reflect.Slice {
		rt = rt.Elem()
	}
	if t, ok := r.types.Load(rt); ok {
		return t.(*Table), nil
	}
	v, err, _ := r.group.Do("type:"+rt.PkgPath()+"."+rt.String(), func() (any, error) {
		if t, ok := r.types.Load(rt); ok {
			return t, nil
		}
		t, err := tableFromType(rt, r.naming)
		if err != nil {
			return nil, err
		}
		actual, _ := r.types.LoadOrStore(rt, t)
		r.names.LoadOrStore(t.Name(), actual)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// ResolveName returns a table by name: registered or previously resolved
// tables first, then the inspector.
func (r *Resolver) ResolveName(ctx context.Context, name string) (*Table, error) {
	if t, ok := r.names.Load(name); ok {
		return t.(*Table), nil
	}
	if r.inspector == nil {
		return nil, fmt.Errorf("schema: table %q is not registered and no inspector is configured", name)
	}
	v, err, _ := r.group.Do("name:"+name, func() (any, error) {
		if t, ok := r.names.Load(name); ok {
			return t, nil
		}
		t, err := r.inspector.InspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("schema: inspect %q: %w", name, err)
		}
		actual, _ := r.names.LoadOrStore(name, t)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Register adds a table under its name. The first registration of a name
// wins; the stored table is returned.
func (r *Resolver) Register(t *Table) *Table {
	actual, _ := r.names.LoadOrStore(t.Name(), t)
	if t.Type() != nil {
		r.types.LoadOrStore(t.Type(), actual)
	}
	return actual.(*Table)
}

// Naming returns the naming rules of the resolver.
func (r *Resolver) Naming() *Naming {
	return r.naming
}
