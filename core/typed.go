package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/cache"
	"github.com/syssam/sqlcore/materialize"
	"github.com/syssam/sqlcore/predicate"
	"github.com/syssam/sqlcore/schema"
	"github.com/syssam/sqlcore/statement"
)

// Query reads the entities of type T matching call.Where.
//
//	adults, err := core.Query[User](ctx, c, core.Call{Where: Age.GTE(18)})
func Query[T any](ctx context.Context, c *Core, call Call) ([]T, error) {
	call.Op = sqlcore.OpSelect
	call.Entity = zero[T]()
	p, err := c.prepare(ctx, call)
	if err != nil {
		return nil, err
	}
	useCache := c.cache != nil && call.CacheKey != ""
	if useCache {
		v, ok, err := cache.Load[[]T](ctx, c.cache, call.CacheKey)
		if err != nil {
			c.logger.WarnContext(ctx, "cache read failed", "key", call.CacheKey, "error", err)
		} else if ok {
			return v, nil
		}
	}
	stmt, err := p.build(sqlcore.OpSelect, nil)
	if err != nil {
		return nil, err
	}
	var out []T
	err = c.engine.Query(ctx, c.engineCall(p, stmt), func(rows *sql.Rows) error {
		out, err = materialize.Entities[T](c.mapper, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := cache.Store(ctx, c.cache, call.CacheKey, out, call.CacheTTL); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", "key", call.CacheKey, "error", err)
		}
	}
	return out, nil
}

// First returns the first entity matching call.Where, or false.
func First[T any](ctx context.Context, c *Core, call Call) (T, bool, error) {
	call.Limit = 1
	out, err := Query[T](ctx, c, call)
	if err != nil || len(out) == 0 {
		var zero T
		return zero, false, err
	}
	return out[0], true, nil
}

// Scalar computes call.Op over the entities of type T. An aggregate over
// no rows is NULL except for Count. The value is cached under
// call.CacheKey when set.
func Scalar[T, E any](ctx context.Context, c *Core, call Call) (sql.Null[T], error) {
	var v sql.Null[T]
	if !call.Op.IsAggregate() {
		return v, fmt.Errorf("sqlcore: %s is not an aggregate", call.Op)
	}
	call.Entity = zero[E]()
	p, err := c.prepare(ctx, call)
	if err != nil {
		return v, err
	}
	useCache := c.cache != nil && call.CacheKey != ""
	if useCache {
		cv, ok, err := cache.Load[sql.Null[T]](ctx, c.cache, call.CacheKey)
		if err != nil {
			c.logger.WarnContext(ctx, "cache read failed", "key", call.CacheKey, "error", err)
		} else if ok {
			return cv, nil
		}
	}
	stmt, err := p.build(call.Op, nil)
	if err != nil {
		return v, err
	}
	err = c.engine.Query(ctx, c.engineCall(p, stmt), func(rows *sql.Rows) error {
		v, err = materialize.Scalar[T](rows, call.Op)
		return err
	})
	if err != nil {
		return v, err
	}
	if useCache {
		if err := cache.Store(ctx, c.cache, call.CacheKey, v, call.CacheTTL); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", "key", call.CacheKey, "error", err)
		}
	}
	return v, nil
}

// Count returns the number of entities of type T matching call.Where.
func Count[E any](ctx context.Context, c *Core, call Call) (int64, error) {
	call.Op = sqlcore.OpCount
	v, err := Scalar[int64, E](ctx, c, call)
	return v.V, err
}

// Insert writes one entity and stores its generated key back into it.
func Insert[T any](ctx context.Context, c *Core, e *T, call Call) error {
	call.Op = sqlcore.OpInsert
	t, err := c.bind(e, &call)
	if err != nil {
		return err
	}
	res, err := c.Invoke(ctx, call)
	if err != nil {
		return err
	}
	return setIdentity(t, []*T{e}, res.IDs)
}

// InsertAll writes entities in batches and stores the generated keys back
// into them. On a partial failure the keys of the committed batches are set
// and the error is a *sqlcore.BatchPartialFailureError.
func InsertAll[T any](ctx context.Context, c *Core, es []*T, call Call) (int64, error) {
	if len(es) == 0 {
		return 0, nil
	}
	call.Op = sqlcore.OpInsertMany
	call.Entity = es[0]
	call.Rows = make([]map[string]any, len(es))
	t, err := c.resolver.Resolve(es[0])
	if err != nil {
		return 0, err
	}
	for i, e := range es {
		if call.Rows[i], err = t.Values(e); err != nil {
			return 0, err
		}
	}
	res, err := c.Invoke(ctx, call)
	if res == nil {
		return 0, err
	}
	if serr := setIdentity(t, es, res.IDs); serr != nil && err == nil {
		err = serr
	}
	return res.Affected, err
}

// Upsert inserts entities or updates the rows matching call.Qualifiers,
// the primary key when empty. When the key is generated, entities without
// one are inserted and receive their new key; the rest match on it.
func Upsert[T any](ctx context.Context, c *Core, es []*T, call Call) (int64, error) {
	if len(es) == 0 {
		return 0, nil
	}
	t, err := c.resolver.Resolve(es[0])
	if err != nil {
		return 0, err
	}
	rows := make([]map[string]any, len(es))
	for i, e := range es {
		if rows[i], err = t.Values(e); err != nil {
			return 0, err
		}
	}
	id, ok := t.Identity()
	if !ok || !matchesOn(t, id, call.Qualifiers) {
		return upsert(ctx, c, t, es, rows, call)
	}
	var (
		fresh, known         []*T
		freshRows, knownRows []map[string]any
	)
	for i, e := range es {
		if v := rows[i][id.Name]; v == nil || reflect.ValueOf(v).IsZero() {
			fresh, freshRows = append(fresh, e), append(freshRows, rows[i])
		} else {
			known, knownRows = append(known, e), append(knownRows, rows[i])
		}
	}
	var n int64
	if len(known) > 0 {
		if n, err = upsert(ctx, c, t, known, knownRows, call); err != nil {
			return n, err
		}
	}
	if len(fresh) > 0 {
		call.Op = sqlcore.OpInsertMany
		call.Entity = fresh[0]
		call.Rows = freshRows
		res, err := c.Invoke(ctx, call)
		if res == nil {
			return n, err
		}
		if serr := setIdentity(t, fresh, res.IDs); serr != nil && err == nil {
			err = serr
		}
		return n + res.Affected, err
	}
	return n, nil
}

// matchesOn reports whether an upsert over qualifiers matches on column c.
func matchesOn(t *schema.Table, c schema.Column, qualifiers []string) bool {
	if len(qualifiers) == 0 {
		return c.PrimaryKey
	}
	for _, q := range qualifiers {
		if qc, ok := t.Column(q); ok && qc.Name == c.Name {
			return true
		}
	}
	return false
}

func upsert[T any](ctx context.Context, c *Core, t *schema.Table, es []*T, rows []map[string]any, call Call) (int64, error) {
	call.Op = sqlcore.OpUpsert
	call.Entity = es[0]
	call.Rows = rows
	res, err := c.Invoke(ctx, call)
	if res == nil {
		return 0, err
	}
	if serr := setIdentity(t, es, res.IDs); serr != nil && err == nil {
		err = serr
	}
	return res.Affected, err
}

// Update writes the fields of e to the row with its primary key, or to the
// rows matching call.Where when set.
func Update[T any](ctx context.Context, c *Core, e *T, call Call) (int64, error) {
	call.Op = sqlcore.OpUpdate
	if _, err := c.bind(e, &call); err != nil {
		return 0, err
	}
	res, err := c.Invoke(ctx, call)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// Delete removes the row with the primary key of e.
func Delete[T any](ctx context.Context, c *Core, e *T, call Call) (int64, error) {
	call.Op = sqlcore.OpDelete
	t, err := c.bind(e, &call)
	if err != nil {
		return 0, err
	}
	call.Rows = nil
	if call.Where == nil {
		return 0, sqlcore.NewMissingKeyError(t.Name(), call.Op)
	}
	res, err := c.Invoke(ctx, call)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// DeleteWhere removes the rows of type T matching where. A nil where
// deletes every row.
func DeleteWhere[T any](ctx context.Context, c *Core, where predicate.Input) (int64, error) {
	res, err := c.Invoke(ctx, Call{Op: sqlcore.OpDelete, Entity: zero[T](), Where: where})
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// bind fills call with the entity values of e and, for updates and deletes
// without a filter, its primary key condition.
func (c *Core) bind(e any, call *Call) (*schema.Table, error) {
	t, err := c.resolver.Resolve(e)
	if err != nil {
		return nil, err
	}
	values, err := t.Values(e)
	if err != nil {
		return nil, err
	}
	call.Entity = e
	call.Rows = []map[string]any{values}
	if call.Where == nil && (call.Op == sqlcore.OpUpdate || call.Op == sqlcore.OpDelete) {
		key, err := statement.KeyCondition(call.Op, t, values)
		if err != nil {
			return nil, err
		}
		call.Where = predicate.Tree{Node: key}
	}
	return t, nil
}

func setIdentity[T any](t *schema.Table, es []*T, ids []any) error {
	id, ok := t.Identity()
	if !ok {
		return nil
	}
	for i, v := range ids {
		if i >= len(es) {
			break
		}
		if err := t.SetValue(es[i], id.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// zero returns a nil *T used to resolve the table of T.
func zero[T any]() any {
	return reflect.Zero(reflect.PointerTo(reflect.TypeFor[T]())).Interface()
}
