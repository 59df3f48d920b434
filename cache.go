package sqlcore

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Cache is the interface for caching query results.
// Implementations store opaque blobs; the core encodes results before Set.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey derives a key from the logical identity of a read.
// Two reads with equal keys are expected to return equal results.
type CacheKey struct {
	Table     string
	Operation Op
	Condition string // JSON form of the condition tree
	Fields    []string
	OrderBy   string
	Limit     int
	Offset    int
	Hints     string
}

// String returns the string representation of the cache key.
// Keys share the "table:" prefix so DeletePrefix can drop a table's entries.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Table)
	b.WriteByte(':')
	b.WriteString(k.Operation.String())
	b.WriteByte(':')
	b.WriteString(strings.Join(k.Fields, ","))
	b.WriteByte(':')
	b.WriteString(k.Condition)
	b.WriteByte(':')
	b.WriteString(k.OrderBy)
	if k.Limit > 0 || k.Offset > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(k.Limit))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(k.Offset))
	}
	if k.Hints != "" {
		b.WriteString(":@")
		b.WriteString(k.Hints)
	}
	return b.String()
}

// TablePrefix returns the key prefix shared by every entry of a table.
func TablePrefix(table string) string {
	return table + ":"
}
