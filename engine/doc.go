// Package engine executes built statements against caller-supplied
// connection handles.
//
// A call acquires a connection, applies session variables, runs the
// before-execute hooks, sends the statement under the configured timeout,
// runs the after-execute hooks and releases the connection on every exit
// path. Transactions passed with Tx are reused and never closed.
//
//	eng := engine.New(
//	    engine.WithTimeout(5*time.Second),
//	    engine.WithTracer(engine.NewLogTracer()),
//	)
//	res, err := eng.Exec(ctx, engine.Call{Handle: engine.DB(dialect.Postgres, db), Statement: stmt})
package engine
