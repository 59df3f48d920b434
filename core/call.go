package core

import (
	"time"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/engine"
	"github.com/syssam/sqlcore/materialize"
	"github.com/syssam/sqlcore/predicate"
	"github.com/syssam/sqlcore/statement"
)

// Call describes one database operation.
type Call struct {
	Op sqlcore.Op

	// Table names the target table. Entity, when set, takes precedence and
	// resolves the table from its type.
	Table  string
	Entity any

	// Where filters the rows read, updated or deleted. Nil selects every row.
	Where predicate.Input

	Fields     []string
	OrderBy    []statement.Order
	Limit      int
	Offset     int
	Hints      string
	Qualifiers []string

	// Rows holds the values written, keyed by logical or physical name.
	Rows []map[string]any

	// BatchSize caps the rows per statement of InsertMany and Upsert.
	// Zero uses the core default.
	BatchSize int

	// CacheKey opts a read into the result cache. CacheTTL of zero keeps
	// the entry until it is invalidated.
	CacheKey string
	CacheTTL time.Duration

	// Handle overrides the core default handle.
	Handle  *engine.Handle
	Timeout time.Duration
	Tracer  engine.Tracer
}

// Result is the outcome of a call.
type Result struct {
	// Rows holds the rows of a Select.
	Rows []materialize.Row

	// Scalar holds the value of an aggregate. It is nil for Sum, Average,
	// Min and Max over no rows and zero for Count.
	Scalar any

	// Affected is the number of rows written.
	Affected int64

	// ID is the generated key of a single Insert. IDs holds the generated
	// keys of a multi-row write in row order.
	ID  any
	IDs []any

	// Cached reports whether a read was served from the cache.
	Cached bool
}
