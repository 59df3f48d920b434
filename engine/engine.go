package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/dialect"
	"github.com/syssam/sqlcore/statement"
)

// Engine executes built statements on caller-supplied handles.
// An Engine holds no connections and is safe for concurrent use.
type Engine struct {
	tracer  Tracer
	timeout time.Duration
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer adds a tracer run on every call.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		e.tracer = Chain(e.tracer, t)
	}
}

// WithTimeout sets the default statement timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Call is one statement execution.
type Call struct {
	Handle    *Handle
	Statement *statement.Statement
	Timeout   time.Duration // overrides the engine default when > 0
	Tracer    Tracer        // runs after the engine tracers
}

// Exec runs a statement that returns no rows.
func (e *Engine) Exec(ctx context.Context, c Call) (sql.Result, error) {
	var res sql.Result
	err := e.run(ctx, c, func(ctx context.Context, ex ExecQuerier, ev *Event) error {
		r, err := ex.ExecContext(ctx, c.Statement.SQL, ev.Args...)
		if err != nil {
			return err
		}
		res = r
		if n, err := r.RowsAffected(); err == nil {
			ev.Rows = n
		}
		return nil
	})
	return res, err
}

// Query runs a statement and hands its rows to scan. Rows are closed and the
// connection released after scan returns.
func (e *Engine) Query(ctx context.Context, c Call, scan func(*sql.Rows) error) error {
	return e.run(ctx, c, func(ctx context.Context, ex ExecQuerier, ev *Event) (rerr error) {
		rows, err := ex.QueryContext(ctx, c.Statement.SQL, ev.Args...)
		if err != nil {
			return err
		}
		defer func() { rerr = errors.Join(rerr, rows.Close()) }()
		if err := scan(rows); err != nil {
			return err
		}
		return rows.Err()
	})
}

// args returns the statement arguments, named for dialects whose
// placeholders carry names.
func (c Call) args() []any {
	if c.Statement.Dialect != dialect.SQLServer {
		return c.Statement.Args()
	}
	args := make([]any, len(c.Statement.Params))
	for i, p := range c.Statement.Params {
		args[i] = sql.Named(p.Name, p.Value)
	}
	return args
}

func (e *Engine) run(ctx context.Context, c Call, fn func(context.Context, ExecQuerier, *Event) error) (rerr error) {
	if c.Statement == nil {
		return fmt.Errorf("engine: nil statement")
	}
	stmt := c.Statement
	timeout := e.timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ev := &Event{
		ID:       uuid.NewString(),
		Op:       stmt.Op,
		Table:    stmt.Table,
		Dialect:  stmt.Dialect,
		SQL:      stmt.SQL,
		Args:     c.args(),
		Filtered: stmt.Filtered,
		InTx:     c.Handle != nil && c.Handle.InTx(),
		Rows:     -1,
	}

	ex, release, err := c.Handle.acquire(ctx)
	if err != nil {
		return e.classify(ctx, stmt, timeout, fmt.Errorf("acquire connection: %w", err))
	}
	if release != nil {
		defer func() { rerr = errors.Join(rerr, release()) }()
	}
	reset, err := setVars(ctx, ex, c.Handle.Dialect(), c.Handle.InTx())
	if reset != nil {
		defer func() { rerr = errors.Join(rerr, reset()) }()
	}
	if err != nil {
		return e.classify(ctx, stmt, timeout, err)
	}

	tracer := Chain(e.tracer, c.Tracer)
	if tracer.BeforeExecute(ctx, ev) == Cancel {
		return &sqlcore.CancelledByTraceError{
			Op:        stmt.Op,
			Table:     stmt.Table,
			Statement: stmt.Preview(),
			Reason:    ev.Reason,
		}
	}
	ev.Start = e.now()
	err = fn(ctx, ex, ev)
	ev.Duration = e.now().Sub(ev.Start)
	if err != nil {
		err = e.classify(ctx, stmt, timeout, err)
	}
	tracer.AfterExecute(ctx, ev, err)
	return err
}

// classify wraps a driver failure into the error taxonomy. Any failure after
// the call deadline passed counts as a timeout, whatever the driver reported.
func (e *Engine) classify(ctx context.Context, stmt *statement.Statement, timeout time.Duration, err error) error {
	if IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &sqlcore.CommandTimeoutError{
			Op:        stmt.Op,
			Table:     stmt.Table,
			Statement: stmt.Preview(),
			Timeout:   timeout,
			Err:       err,
		}
	}
	return &sqlcore.ExecutionError{
		Op:         stmt.Op,
		Table:      stmt.Table,
		Statement:  stmt.Preview(),
		Constraint: Constraint(err),
		Err:        err,
	}
}
