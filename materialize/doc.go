// Package materialize turns result rows into typed entities, ordered dynamic
// rows or aggregate scalars.
//
//	users, err := materialize.Entities[User](mapper, rows)
//	n, err := materialize.Scalar[int64](rows, sqlcore.OpCount)
package materialize
