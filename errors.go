package sqlcore

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors. Every typed error below matches its sentinel
// through errors.Is.
var (
	// ErrUnsupportedPredicate is returned when a predicate uses a construct
	// that has no condition equivalent.
	ErrUnsupportedPredicate = errors.New("sqlcore: unsupported predicate")

	// ErrUnknownField is returned when a field does not resolve against a table.
	ErrUnknownField = errors.New("sqlcore: unknown field")

	// ErrAggregateArity is returned when an aggregate receives the wrong number of fields.
	ErrAggregateArity = errors.New("sqlcore: aggregate arity")

	// ErrInvalidCondition is returned when a condition leaf is malformed.
	ErrInvalidCondition = errors.New("sqlcore: invalid condition")

	// ErrMissingKey is returned when an operation needs a key the table does not have.
	ErrMissingKey = errors.New("sqlcore: missing key")

	// ErrCommandTimeout is returned when a statement exceeds its timeout.
	ErrCommandTimeout = errors.New("sqlcore: command timeout")

	// ErrCancelledByTrace is returned when a trace hook cancels execution.
	ErrCancelledByTrace = errors.New("sqlcore: cancelled by trace")

	// ErrBatchPartialFailure is returned when a batched write stops midway.
	ErrBatchPartialFailure = errors.New("sqlcore: batch partial failure")

	// ErrExecution is returned for any other driver failure.
	ErrExecution = errors.New("sqlcore: execution failed")
)

// previewLen bounds the statement text carried by errors.
const previewLen = 120

// Preview shortens a statement for error messages and logs.
func Preview(stmt string) string {
	r := []rune(stmt)
	if len(r) <= previewLen {
		return stmt
	}
	return string(r[:previewLen]) + "..."
}

// UnsupportedPredicateError reports a predicate construct with no SQL translation.
type UnsupportedPredicateError struct {
	Construct string // e.g. "field comparison", "opaque function"
	Detail    string
}

// Error returns the error string.
func (e *UnsupportedPredicateError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sqlcore: unsupported predicate construct %s: %s", e.Construct, e.Detail)
	}
	return fmt.Sprintf("sqlcore: unsupported predicate construct %s", e.Construct)
}

// Is reports whether the target error matches UnsupportedPredicateError.
func (e *UnsupportedPredicateError) Is(err error) bool {
	return err == ErrUnsupportedPredicate
}

// NewUnsupportedPredicateError returns a new UnsupportedPredicateError.
func NewUnsupportedPredicateError(construct, detail string) *UnsupportedPredicateError {
	return &UnsupportedPredicateError{Construct: construct, Detail: detail}
}

// IsUnsupportedPredicate returns true if the error is an UnsupportedPredicateError.
func IsUnsupportedPredicate(err error) bool {
	return err != nil && errors.Is(err, ErrUnsupportedPredicate)
}

// UnknownFieldError reports a field that is not a column of the table.
type UnknownFieldError struct {
	Table string
	Field string
}

// Error returns the error string.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("sqlcore: unknown field %q on table %q", e.Field, e.Table)
}

// Is reports whether the target error matches UnknownFieldError.
func (e *UnknownFieldError) Is(err error) bool {
	return err == ErrUnknownField
}

// NewUnknownFieldError returns a new UnknownFieldError.
func NewUnknownFieldError(table, field string) *UnknownFieldError {
	return &UnknownFieldError{Table: table, Field: field}
}

// IsUnknownField returns true if the error is an UnknownFieldError.
func IsUnknownField(err error) bool {
	return err != nil && errors.Is(err, ErrUnknownField)
}

// AggregateArityError reports an aggregate called with the wrong number of fields.
type AggregateArityError struct {
	Op    Op
	Table string
	Got   int
}

// Error returns the error string.
func (e *AggregateArityError) Error() string {
	return fmt.Sprintf("sqlcore: %s on %q requires exactly one field, got %d", e.Op, e.Table, e.Got)
}

// Is reports whether the target error matches AggregateArityError.
func (e *AggregateArityError) Is(err error) bool {
	return err == ErrAggregateArity
}

// NewAggregateArityError returns a new AggregateArityError.
func NewAggregateArityError(op Op, table string, got int) *AggregateArityError {
	return &AggregateArityError{Op: op, Table: table, Got: got}
}

// InvalidConditionError reports a malformed condition leaf.
type InvalidConditionError struct {
	Field  string
	Op     string
	Reason string
}

// Error returns the error string.
func (e *InvalidConditionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("sqlcore: invalid condition (%s): %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("sqlcore: invalid condition on %q (%s): %s", e.Field, e.Op, e.Reason)
}

// Is reports whether the target error matches InvalidConditionError.
func (e *InvalidConditionError) Is(err error) bool {
	return err == ErrInvalidCondition
}

// NewInvalidConditionError returns a new InvalidConditionError.
func NewInvalidConditionError(field, op, reason string) *InvalidConditionError {
	return &InvalidConditionError{Field: field, Op: op, Reason: reason}
}

// IsInvalidCondition returns true if the error is an InvalidConditionError.
func IsInvalidCondition(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidCondition)
}

// MissingKeyError reports an operation that needs a primary key or qualifiers.
type MissingKeyError struct {
	Table string
	Op    Op
}

// Error returns the error string.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("sqlcore: %s on %q requires a primary key or qualifier fields", e.Op, e.Table)
}

// Is reports whether the target error matches MissingKeyError.
func (e *MissingKeyError) Is(err error) bool {
	return err == ErrMissingKey
}

// NewMissingKeyError returns a new MissingKeyError.
func NewMissingKeyError(table string, op Op) *MissingKeyError {
	return &MissingKeyError{Table: table, Op: op}
}

// CommandTimeoutError reports a statement that did not finish in time.
type CommandTimeoutError struct {
	Op        Op
	Table     string
	Statement string // preview
	Timeout   time.Duration
	Err       error
}

// Error returns the error string.
func (e *CommandTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("sqlcore: %s on %q timed out after %s: %s", e.Op, e.Table, e.Timeout, e.Statement)
	}
	return fmt.Sprintf("sqlcore: %s on %q timed out: %s", e.Op, e.Table, e.Statement)
}

// Unwrap returns the underlying error.
func (e *CommandTimeoutError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches CommandTimeoutError.
func (e *CommandTimeoutError) Is(err error) bool {
	return err == ErrCommandTimeout
}

// IsCommandTimeout returns true if the error is a CommandTimeoutError.
func IsCommandTimeout(err error) bool {
	if err == nil {
		return false
	}
	var e *CommandTimeoutError
	return errors.As(err, &e)
}

// CancelledByTraceError reports a call cancelled by a before-execute hook.
// The database was not touched.
type CancelledByTraceError struct {
	Op        Op
	Table     string
	Statement string
	Reason    string
}

// Error returns the error string.
func (e *CancelledByTraceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("sqlcore: %s on %q cancelled by trace: %s", e.Op, e.Table, e.Reason)
	}
	return fmt.Sprintf("sqlcore: %s on %q cancelled by trace", e.Op, e.Table)
}

// Is reports whether the target error matches CancelledByTraceError.
func (e *CancelledByTraceError) Is(err error) bool {
	return err == ErrCancelledByTrace
}

// IsCancelledByTrace returns true if the error is a CancelledByTraceError.
func IsCancelledByTrace(err error) bool {
	return err != nil && errors.Is(err, ErrCancelledByTrace)
}

// BatchPartialFailureError reports a batched write that stopped at a failing batch.
// Rows of earlier batches stay committed.
type BatchPartialFailureError struct {
	Batch     int // zero-based index of the failing batch
	Batches   int
	Committed int // rows written by the batches before Batch
	Err       error
}

// Error returns the error string.
func (e *BatchPartialFailureError) Error() string {
	return fmt.Sprintf("sqlcore: batch %d of %d failed after %d committed rows: %v", e.Batch+1, e.Batches, e.Committed, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchPartialFailureError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches BatchPartialFailureError.
func (e *BatchPartialFailureError) Is(err error) bool {
	return err == ErrBatchPartialFailure
}

// IsBatchPartialFailure returns true if the error is a BatchPartialFailureError.
func IsBatchPartialFailure(err error) bool {
	if err == nil {
		return false
	}
	var e *BatchPartialFailureError
	return errors.As(err, &e)
}

// Constraint kinds reported by ExecutionError.
const (
	ConstraintUnique     = "unique"
	ConstraintForeignKey = "foreign_key"
	ConstraintCheck      = "check"
)

// ExecutionError wraps a driver failure with the statement context.
type ExecutionError struct {
	Op         Op
	Table      string
	Statement  string
	Constraint string // empty when the failure is not a constraint violation
	Err        error
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("sqlcore: %s on %q violated %s constraint: %v", e.Op, e.Table, e.Constraint, e.Err)
	}
	return fmt.Sprintf("sqlcore: %s on %q: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ExecutionError.
func (e *ExecutionError) Is(err error) bool {
	return err == ErrExecution
}

// IsConstraintError returns true if the error is an ExecutionError caused by a
// constraint violation.
func IsConstraintError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e) && e.Constraint != ""
}
