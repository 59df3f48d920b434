package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/syssam/sqlcore/dialect"
)

// ExecQuerier wraps the standard Exec and Query methods.
// *sql.DB, *sql.Conn and *sql.Tx implement it.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is a connection acquired for the duration of one call.
type Conn interface {
	ExecQuerier
	Close() error
}

// Opener acquires connections. The engine calls Open once per call and
// closes the returned Conn on every exit path.
type Opener interface {
	Open(ctx context.Context) (Conn, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Conn, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Conn, error) { return f(ctx) }

// Handle is the caller-supplied connection source of a call: either an
// opener, for a connection per call, or an existing transaction that the
// engine reuses and never closes.
type Handle struct {
	dialect string
	opener  Opener
	tx      ExecQuerier
}

// DB returns a handle acquiring a dedicated connection from db per call.
func DB(name string, db *sql.DB) *Handle {
	return Connect(name, OpenerFunc(func(ctx context.Context) (Conn, error) {
		return db.Conn(ctx)
	}))
}

// Connect returns a handle acquiring connections from opener.
func Connect(name string, opener Opener) *Handle {
	return &Handle{dialect: canonical(name), opener: opener}
}

// Tx returns a handle running every call on tx. Commit and rollback stay
// with the caller.
func Tx(name string, tx ExecQuerier) *Handle {
	return &Handle{dialect: canonical(name), tx: tx}
}

// canonical resolves driver aliases such as "pgx" or "sqlite3".
func canonical(name string) string {
	if s, err := dialect.Get(name); err == nil {
		return s.Name()
	}
	return name
}

// Dialect returns the dialect name of the handle.
func (h *Handle) Dialect() string { return h.dialect }

// InTx reports whether the handle reuses a transaction.
func (h *Handle) InTx() bool { return h.tx != nil }

// acquire returns the ExecQuerier of a call and its release function.
// release is nil for transactions.
func (h *Handle) acquire(ctx context.Context) (ExecQuerier, func() error, error) {
	switch {
	case h == nil:
		return nil, nil, fmt.Errorf("engine: nil handle")
	case h.tx != nil:
		return h.tx, nil, nil
	case h.opener != nil:
		c, err := h.opener.Open(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("engine: handle has neither an opener nor a transaction")
}
