// Package schema resolves the table metadata statements are built from.
//
// A table is resolved once per key and cached for the lifetime of the
// Resolver. Entity types are resolved from their struct fields:
//
//	type User struct {
//	    ID        int64     `db:"id,pk,identity"`
//	    Email     string    `db:"email"`
//	    CreatedAt time.Time // column created_at
//	    Internal  string    `db:"-"`
//	}
//
// Untagged names follow the Naming rules: types map to plural snake_case
// tables (OrderItem -> order_items) and fields to snake_case columns
// (UserID -> user_id). Types implementing TableNamer pick their own table
// name. Embedded structs are flattened.
//
// When no field is tagged pk, a field whose column is "id" is the primary
// key; an integer one is also the identity column.
//
// Tables known only by name are registered with Register or loaded through
// an Inspector; AtlasInspector reads them from a live database.
package schema
