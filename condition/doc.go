// Package condition provides the normalized condition tree compiled into
// WHERE clauses.
//
// A tree is made of two node kinds:
//
//   - Leaf: a field, an Operator and its values (age > 18, name IN (...))
//   - Group: an And or Or conjunction over child nodes
//
// An empty Group matches all rows. Nodes are immutable; accessors return
// copies and helpers such as Not always build new trees.
//
// # Construction
//
//	age, _ := condition.NewLeaf("age", condition.GreaterThan, 18)
//	status, _ := condition.NewLeaf("status", condition.In, []string{"active", "trial"})
//	where := condition.AllOf(age, status)
//
// # JSON Form
//
// Trees round-trip through JSON so they can be stored and supplied from
// outside Go code:
//
//	{"and":[{"field":"age","op":"GreaterThan","values":[18]},
//	        {"or":[{"field":"name","op":"Like","values":["A%"]}]}]}
//
// # In-Memory Evaluation
//
// Match evaluates a tree against field values using SQL three-valued logic,
// so the result equals what the database returns for the same row.
package condition
