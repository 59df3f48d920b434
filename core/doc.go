// Package core compiles calls into statements and executes them.
//
// Invoke resolves the target table, translates the predicate, builds one
// statement (or a batch plan for InsertMany and Upsert), executes it
// through the engine and materializes the result. Reads carrying a cache
// key are served from and stored into the configured cache.
//
//	c := core.New(core.WithHandle(engine.DB(dialect.Postgres, db)))
//	adults, err := core.Query[User](ctx, c, core.Call{Where: Age.GTE(18)})
//	n, err := core.InsertAll(ctx, c, users, core.Call{BatchSize: 500})
package core
