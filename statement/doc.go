// Package statement compiles an operation, a table and a condition tree into
// a parameterized SQL statement.
//
//	b := statement.NewBuilder(dialect.MustGet(dialect.Postgres))
//	stmt, err := b.Build(sqlcore.OpSelect, users, where, statement.Options{
//	    OrderBy: []statement.Order{statement.Desc("created_at")},
//	    Limit:   10,
//	})
//	// SELECT "id", "name", ... FROM "users" WHERE "age" > $1 ORDER BY "created_at" DESC LIMIT 10
//
// Values are always bound as parameters named p1..pn in placeholder order;
// identifiers are quoted and never bound. An empty condition renders no
// WHERE clause.
package statement
