package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/batch"
	"github.com/syssam/sqlcore/cache"
	"github.com/syssam/sqlcore/condition"
	"github.com/syssam/sqlcore/dialect"
	"github.com/syssam/sqlcore/engine"
	"github.com/syssam/sqlcore/materialize"
	"github.com/syssam/sqlcore/predicate"
	"github.com/syssam/sqlcore/schema"
	"github.com/syssam/sqlcore/statement"
)

// Core compiles and executes calls. It holds no connections and is safe for
// concurrent use.
type Core struct {
	resolver  *schema.Resolver
	mapper    *materialize.Mapper
	engine    *engine.Engine
	cache     sqlcore.Cache
	handle    *engine.Handle
	batchSize int
	logger    *slog.Logger
}

// Option configures a Core.
type Option func(*Core)

// WithResolver sets the schema resolver.
func WithResolver(r *schema.Resolver) Option {
	return func(c *Core) {
		c.resolver = r
	}
}

// WithMapper sets the entity mapper.
func WithMapper(m *materialize.Mapper) Option {
	return func(c *Core) {
		c.mapper = m
	}
}

// WithEngine sets the execution engine.
func WithEngine(e *engine.Engine) Option {
	return func(c *Core) {
		c.engine = e
	}
}

// WithCache enables result caching for calls carrying a cache key.
func WithCache(cc sqlcore.Cache) Option {
	return func(c *Core) {
		c.cache = cc
	}
}

// WithHandle sets the handle used by calls that do not carry one.
func WithHandle(h *engine.Handle) Option {
	return func(c *Core) {
		c.handle = h
	}
}

// WithBatchSize sets the default number of rows per multi-row statement.
func WithBatchSize(n int) Option {
	return func(c *Core) {
		c.batchSize = n
	}
}

// WithLogger sets the logger used for cache failures. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

// New returns a Core.
func New(opts ...Option) *Core {
	c := &Core{batchSize: batch.DefaultSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = schema.NewResolver()
	}
	if c.mapper == nil {
		c.mapper = materialize.NewMapper(c.resolver)
	}
	if c.engine == nil {
		c.engine = engine.New()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Resolver returns the schema resolver of the core.
func (c *Core) Resolver() *schema.Resolver { return c.resolver }

// Invalidate drops every cached result of a table.
func (c *Core) Invalidate(ctx context.Context, table string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.DeletePrefix(ctx, sqlcore.TablePrefix(table))
}

// prepared is a call with its table, dialect and condition resolved.
type prepared struct {
	call     Call
	handle   *engine.Handle
	table    *schema.Table
	builder  *statement.Builder
	where    *condition.Group
	strategy dialect.Strategy
}

func (c *Core) prepare(ctx context.Context, call Call) (*prepared, error) {
	h := call.Handle
	if h == nil {
		h = c.handle
	}
	if h == nil {
		return nil, fmt.Errorf("sqlcore: %s requires a connection handle", call.Op)
	}
	strategy, err := dialect.Get(h.Dialect())
	if err != nil {
		return nil, err
	}
	var t *schema.Table
	switch {
	case call.Entity != nil:
		t, err = c.resolver.Resolve(call.Entity)
	case call.Table != "":
		t, err = c.resolver.ResolveName(ctx, call.Table)
	default:
		err = fmt.Errorf("sqlcore: %s requires a table or an entity", call.Op)
	}
	if err != nil {
		return nil, err
	}
	where, err := predicate.Translate(call.Where)
	if err != nil {
		return nil, err
	}
	return &prepared{
		call:     call,
		handle:   h,
		table:    t,
		builder:  statement.NewBuilder(strategy),
		where:    where,
		strategy: strategy,
	}, nil
}

func (p *prepared) options(rows []map[string]any) statement.Options {
	return statement.Options{
		Fields:     p.call.Fields,
		OrderBy:    p.call.OrderBy,
		Limit:      p.call.Limit,
		Offset:     p.call.Offset,
		Hints:      p.call.Hints,
		Qualifiers: p.call.Qualifiers,
		Rows:       rows,
	}
}

func (p *prepared) build(op sqlcore.Op, rows []map[string]any) (*statement.Statement, error) {
	return p.builder.Build(op, p.table, p.where, p.options(rows))
}

func (c *Core) engineCall(p *prepared, stmt *statement.Statement) engine.Call {
	return engine.Call{Handle: p.handle, Statement: stmt, Timeout: p.call.Timeout, Tracer: p.call.Tracer}
}

// Invoke compiles and executes one call. When a batched write stops at a
// failing batch, the result reports the committed rows and their keys
// alongside a *sqlcore.BatchPartialFailureError.
func (c *Core) Invoke(ctx context.Context, call Call) (*Result, error) {
	p, err := c.prepare(ctx, call)
	if err != nil {
		return nil, err
	}
	switch op := call.Op; {
	case op == sqlcore.OpSelect || op.IsAggregate():
		return c.read(ctx, p)
	case op == sqlcore.OpDelete || op == sqlcore.OpUpdate:
		return c.write(ctx, p)
	case op == sqlcore.OpInsert:
		return c.insert(ctx, p)
	case op == sqlcore.OpInsertMany || op == sqlcore.OpUpsert:
		return c.insertMany(ctx, p)
	}
	return nil, fmt.Errorf("sqlcore: unsupported operation %s", call.Op)
}

// Compile builds the statement of a call without executing it. InsertMany
// and Upsert calls compile to a single statement over every row. The
// handle only supplies the dialect; no connection is acquired.
func (c *Core) Compile(ctx context.Context, call Call) (*statement.Statement, error) {
	p, err := c.prepare(ctx, call)
	if err != nil {
		return nil, err
	}
	return p.build(call.Op, call.Rows)
}

// cached is the cache envelope of a read result.
type cached struct {
	Rows   []materialize.Row `msgpack:"r,omitempty"`
	Scalar any               `msgpack:"s,omitempty"`
}

func (c *Core) read(ctx context.Context, p *prepared) (*Result, error) {
	useCache := c.cache != nil && p.call.CacheKey != ""
	if useCache {
		v, ok, err := cache.Load[cached](ctx, c.cache, p.call.CacheKey)
		if err != nil {
			c.logger.WarnContext(ctx, "cache read failed", "key", p.call.CacheKey, "error", err)
		} else if ok {
			return &Result{Rows: v.Rows, Scalar: v.Scalar, Cached: true}, nil
		}
	}
	stmt, err := p.build(p.call.Op, nil)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	err = c.engine.Query(ctx, c.engineCall(p, stmt), func(rows *sql.Rows) error {
		if p.call.Op == sqlcore.OpSelect {
			res.Rows, err = materialize.Dynamic(rows)
			return err
		}
		v, err := materialize.Scalar[any](rows, p.call.Op)
		if err != nil {
			return err
		}
		switch {
		case v.Valid && v.V != nil:
			res.Scalar = v.V
		case v.Valid:
			res.Scalar = int64(0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := cache.Store(ctx, c.cache, p.call.CacheKey, cached{Rows: res.Rows, Scalar: res.Scalar}, p.call.CacheTTL); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", "key", p.call.CacheKey, "error", err)
		}
	}
	return res, nil
}

func (c *Core) write(ctx context.Context, p *prepared) (*Result, error) {
	stmt, err := p.build(p.call.Op, p.call.Rows)
	if err != nil {
		return nil, err
	}
	r, err := c.engine.Exec(ctx, c.engineCall(p, stmt))
	if err != nil {
		return nil, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlcore: %s rows affected: %w", p.call.Op, err)
	}
	return &Result{Affected: n}, nil
}

func (c *Core) insert(ctx context.Context, p *prepared) (*Result, error) {
	stmt, err := p.build(sqlcore.OpInsert, p.call.Rows)
	if err != nil {
		return nil, err
	}
	n, ids, err := c.writeRows(ctx, p, stmt, 1)
	if err != nil {
		return nil, err
	}
	res := &Result{Affected: n, IDs: ids}
	if len(ids) > 0 {
		res.ID = ids[0]
	}
	return res, nil
}

func (c *Core) insertMany(ctx context.Context, p *prepared) (*Result, error) {
	size := p.call.BatchSize
	if size <= 0 {
		size = c.batchSize
	}
	columns := len(p.table.Columns())
	if len(p.call.Fields) > 0 {
		columns = len(p.call.Fields) + len(p.call.Qualifiers)
	}
	size = batch.ClampSize(size, columns, p.strategy.MaxParams())
	plan, err := batch.New(p.call.Rows, size, func(rows []map[string]any) (*statement.Statement, error) {
		return p.build(p.call.Op, rows)
	})
	if err != nil {
		return nil, err
	}
	res := &Result{}
	var partial []any
	n, err := plan.Run(ctx, func(ctx context.Context, b batch.Batch) (int64, error) {
		n, ids, err := c.writeRows(ctx, p, b.Statement, len(b.Rows))
		if err != nil {
			return 0, err
		}
		partial = append(partial, ids...)
		return n, nil
	})
	res.Affected = n
	if len(partial) > 0 {
		res.IDs = partial
	}
	return res, err
}

// writeRows executes an insert or upsert of count rows and returns the
// affected count and the generated identities in row order.
func (c *Core) writeRows(ctx context.Context, p *prepared, stmt *statement.Statement, count int) (int64, []any, error) {
	if stmt.Returns {
		var ids []any
		err := c.engine.Query(ctx, c.engineCall(p, stmt), func(rows *sql.Rows) error {
			for rows.Next() {
				var id any
				if err := rows.Scan(&id); err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return 0, nil, err
		}
		return int64(len(ids)), ids, nil
	}
	r, err := c.engine.Exec(ctx, c.engineCall(p, stmt))
	if err != nil {
		return 0, nil, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("sqlcore: %s rows affected: %w", stmt.Op, err)
	}
	if stmt.Identity == "" || stmt.Op == sqlcore.OpUpsert {
		return n, nil, nil
	}
	// Without RETURNING the driver reports the first generated key of the
	// statement and the following rows take consecutive values.
	first, err := r.LastInsertId()
	if err != nil || first == 0 {
		return n, nil, nil
	}
	ids := make([]any, count)
	for i := range ids {
		ids[i] = first + int64(i)
	}
	return n, ids, nil
}

// Key derives the cache key of a read call from its logical identity.
func (c *Core) Key(ctx context.Context, call Call) (string, error) {
	p, err := c.prepare(ctx, call)
	if err != nil {
		return "", err
	}
	cond, err := p.where.MarshalJSON()
	if err != nil {
		return "", err
	}
	return sqlcore.CacheKey{
		Table:     p.table.Name(),
		Operation: call.Op,
		Condition: string(cond),
		Fields:    call.Fields,
		OrderBy:   statement.OrderString(call.OrderBy),
		Limit:     call.Limit,
		Offset:    call.Offset,
		Hints:     call.Hints,
	}.String(), nil
}
