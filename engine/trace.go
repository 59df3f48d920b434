package engine

import (
	"context"
	"time"

	"github.com/syssam/sqlcore"
)

// Action is the decision of a before-execute hook.
type Action uint8

const (
	// Continue lets the call proceed.
	Continue Action = iota
	// Cancel stops the call before the statement is sent.
	Cancel
)

// Event describes one call for trace hooks.
type Event struct {
	ID       string // unique per call
	Op       sqlcore.Op
	Table    string
	Dialect  string
	SQL      string
	Args     []any
	Filtered bool // the statement carries a WHERE clause
	InTx     bool
	Start    time.Time
	Duration time.Duration // set before AfterExecute
	Rows     int64         // affected rows of an Exec; -1 when unknown

	// Reason explains a Cancel decision. Hooks set it.
	Reason string
}

// Preview returns the shortened statement text.
func (e *Event) Preview() string { return sqlcore.Preview(e.SQL) }

// Tracer observes calls. BeforeExecute runs after the connection is
// acquired and before the statement is sent; returning Cancel aborts the
// call with a *sqlcore.CancelledByTraceError. AfterExecute runs once the
// statement finished, successfully or not, before the connection is
// released. Cancelled calls skip AfterExecute.
type Tracer interface {
	BeforeExecute(ctx context.Context, e *Event) Action
	AfterExecute(ctx context.Context, e *Event, err error)
}

// Hooks adapts a pair of functions to the Tracer interface. Nil functions
// are skipped.
type Hooks struct {
	Before func(ctx context.Context, e *Event) Action
	After  func(ctx context.Context, e *Event, err error)
}

// BeforeExecute implements Tracer.
func (h Hooks) BeforeExecute(ctx context.Context, e *Event) Action {
	if h.Before == nil {
		return Continue
	}
	return h.Before(ctx, e)
}

// AfterExecute implements Tracer.
func (h Hooks) AfterExecute(ctx context.Context, e *Event, err error) {
	if h.After != nil {
		h.After(ctx, e, err)
	}
}

// Chain composes tracers. BeforeExecute hooks run in order and the first
// Cancel wins; AfterExecute hooks run in order.
func Chain(tracers ...Tracer) Tracer {
	var c chain
	for _, t := range tracers {
		switch t := t.(type) {
		case nil:
		case chain:
			c = append(c, t...)
		default:
			c = append(c, t)
		}
	}
	return c
}

type chain []Tracer

func (c chain) BeforeExecute(ctx context.Context, e *Event) Action {
	for _, t := range c {
		if t.BeforeExecute(ctx, e) == Cancel {
			return Cancel
		}
	}
	return Continue
}

func (c chain) AfterExecute(ctx context.Context, e *Event, err error) {
	for _, t := range c {
		t.AfterExecute(ctx, e, err)
	}
}
