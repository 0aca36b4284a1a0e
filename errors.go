package easydb

import "github.com/syssam/easydb/internal/apperror"

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = apperror.ErrNotFound

	// ErrNotSingular is returned when a query that expects exactly one
	// result returns zero or multiple results.
	ErrNotSingular = apperror.ErrNotSingular

	// ErrTxStarted reports an attempt to begin a transaction inside
	// another one. A nested write opens a savepoint instead, so no code
	// path in this module returns it.
	ErrTxStarted = apperror.ErrTxStarted
)

// Error is implemented by every typed error this package returns. Kind
// reports one of the error kinds from the design: "sqliteError",
// "noSuchColumn", "noSuchParameter", "noRow", "codingError", "reflection",
// "misuse", "notImplemented", "unexpected".
//
// The concrete types live in internal/apperror, which pool, collection and
// query also depend on directly — they sit below this package in the
// import graph and so construct and return these same types from their own
// real call sites (spec §4.G), rather than this package's own, otherwise
// unreachable, constructors.
type Error = apperror.Error

// SQLiteError wraps an error returned by the underlying engine, preserving
// its result code, message and the SQL that produced it.
type SQLiteError = apperror.SQLiteError

// NoSuchColumnError is returned when a statement references a column name
// that does not exist in the current row.
type NoSuchColumnError = apperror.NoSuchColumnError

// NoSuchParameterError is returned when binding references a named
// parameter that the prepared statement does not declare.
type NoSuchParameterError = apperror.NoSuchParameterError

// NoRowError is returned when a row accessor is used before a successful
// step, or after the statement is exhausted.
type NoRowError = apperror.NoRowError

// CodingError represents a failure encoding or decoding a single value,
// naming the offending property path.
type CodingError = apperror.CodingError

// ReflectionSubkind enumerates the ReflectionError variants from spec §7.
type ReflectionSubkind = apperror.ReflectionSubkind

const (
	ReflectionInvalidRecordType = apperror.ReflectionInvalidRecordType
	ReflectionNoSamples         = apperror.ReflectionNoSamples
	ReflectionKeyPathNotFound   = apperror.ReflectionKeyPathNotFound
	ReflectionDecodingError     = apperror.ReflectionDecodingError
)

// ReflectionError is fatal for the affected record type but never poisons
// the database: callers should treat it as "this type cannot be used" and
// fix the type definition, not retry.
type ReflectionError = apperror.ReflectionError

// MisuseError is returned when the caller violates an API contract that
// cannot be expressed in the type system (e.g. binding a slice where a
// keyed record is expected).
type MisuseError = apperror.MisuseError

// NotImplementedError is returned for a recognised but unsupported
// operation, such as filtering on a nested JSON property path. Migration
// does not return it: columns carry no declared type, and a field whose Go
// type changes keeps its existing column without any error.
type NotImplementedError = apperror.NotImplementedError

// UnexpectedError wraps an invariant violation that should be impossible
// given a correct implementation; it is never expected to surface to a
// well-behaved caller.
type UnexpectedError = apperror.UnexpectedError

// NotFoundError represents an error when a requested row does not exist.
type NotFoundError = apperror.NotFoundError

// NewNotFoundError returns a new NotFoundError for the given collection label.
func NewNotFoundError(label string) *NotFoundError { return apperror.NewNotFoundError(label) }

// NewNotFoundErrorWithID returns a new NotFoundError carrying the id searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return apperror.NewNotFoundErrorWithID(label, id)
}

// IsNotFound returns true if err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool { return apperror.IsNotFound(err) }

// NotSingularError represents an error when a query expects exactly one
// result but zero or multiple rows matched.
type NotSingularError = apperror.NotSingularError

// NewNotSingularError returns a new NotSingularError with an unknown count.
func NewNotSingularError(label string) *NotSingularError {
	return apperror.NewNotSingularError(label)
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return apperror.NewNotSingularErrorWithCount(label, count)
}

// IsNotSingular returns true if err is, or wraps, a NotSingularError.
func IsNotSingular(err error) bool { return apperror.IsNotSingular(err) }

// ConstraintError represents a database constraint violation, such as a
// UNIQUE index conflict surfaced during a bulk write.
type ConstraintError = apperror.ConstraintError

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error { return apperror.NewConstraintError(msg, wrap) }

// IsConstraintError returns true if err is, or wraps, a ConstraintError.
func IsConstraintError(err error) bool { return apperror.IsConstraintError(err) }

// RollbackError wraps an error that occurred while rolling back a
// transaction after block failed; both errors are preserved.
type RollbackError = apperror.RollbackError

// AggregateError represents multiple errors collected during one
// operation. Migration does not produce it: of several index-creation
// failures it reports only the first.
type AggregateError = apperror.AggregateError

// NewAggregateError returns a new AggregateError if there are any non-nil
// errors, the single error if there is exactly one, or nil.
func NewAggregateError(errs ...error) error { return apperror.NewAggregateError(errs...) }
