// Package batch splits multi-row writes into bounded statements and runs
// them one after another.
package batch

import (
	"context"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/statement"
)

// DefaultSize is the number of rows per batch when none is given.
const DefaultSize = 100

// Factory builds the statement of one batch.
type Factory func(rows []map[string]any) (*statement.Statement, error)

// Batch is a contiguous chunk of rows and its statement.
type Batch struct {
	Index     int
	Offset    int // position of the first row in the planned input
	Rows      []map[string]any
	Statement *statement.Statement
}

// Plan is an ordered list of batches covering every input row once.
type Plan struct {
	batches []Batch
	rows    int
}

// New splits rows into batches of at most size rows and builds one statement
// per batch. A size <= 0 selects DefaultSize. Row order is preserved so
// generated identity values map back by position.
func New(rows []map[string]any, size int, factory Factory) (*Plan, error) {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Plan{rows: len(rows)}
	for off := 0; off < len(rows); off += size {
		chunk := rows[off:min(off+size, len(rows))]
		stmt, err := factory(chunk)
		if err != nil {
			return nil, err
		}
		p.batches = append(p.batches, Batch{
			Index:     len(p.batches),
			Offset:    off,
			Rows:      chunk,
			Statement: stmt,
		})
	}
	return p, nil
}

// Batches returns the planned batches.
func (p *Plan) Batches() []Batch {
	return append([]Batch(nil), p.batches...)
}

// Len returns the number of batches.
func (p *Plan) Len() int { return len(p.batches) }

// Rows returns the number of planned rows.
func (p *Plan) Rows() int { return p.rows }

// ExecFunc executes one batch and returns the affected row count.
type ExecFunc func(ctx context.Context, b Batch) (int64, error)

// Run executes the batches in order. The first failure stops the run and is
// returned as a *sqlcore.BatchPartialFailureError; batches that already
// succeeded are not rolled back. The returned count is the sum reported by exec.
func (p *Plan) Run(ctx context.Context, exec ExecFunc) (int64, error) {
	var (
		affected  int64
		committed int
	)
	for _, b := range p.batches {
		err := ctx.Err()
		if err == nil {
			var n int64
			n, err = exec(ctx, b)
			affected += n
		}
		if err != nil {
			return affected, &sqlcore.BatchPartialFailureError{
				Batch:     b.Index,
				Batches:   len(p.batches),
				Committed: committed,
				Err:       err,
			}
		}
		committed += len(b.Rows)
	}
	return affected, nil
}

// ClampSize lowers size so that one statement binding columns values per row
// stays within maxParams. It never returns less than 1.
func ClampSize(size, columns, maxParams int) int {
	if size <= 0 {
		size = DefaultSize
	}
	if columns <= 0 || maxParams <= 0 {
		return size
	}
	if limit := maxParams / columns; size > limit {
		return max(limit, 1)
	}
	return size
}
