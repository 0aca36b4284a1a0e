// Package apperror holds the library's typed error taxonomy (spec §7) and
// the driver-error translation that produces it. It lives below the
// easydb, pool, collection and query packages so each of them can
// construct and return these types directly without an import cycle back
// through the root package; easydb itself re-exports everything here as
// its public Error/SQLiteError/... API.
package apperror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/easydb/internal/sqlitedriver"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("easydb: row not found")

	// ErrNotSingular is returned when a query that expects exactly one
	// result returns zero or multiple results.
	ErrNotSingular = errors.New("easydb: row not singular")

	// ErrTxStarted reports an attempt to begin a transaction inside
	// another one. A nested write opens a savepoint instead, so no code
	// path in this module returns it.
	ErrTxStarted = errors.New("easydb: cannot start a transaction within a transaction")
)

// Error is implemented by every typed error this package returns. Kind
// reports one of the error kinds from the design: "sqliteError",
// "noSuchColumn", "noSuchParameter", "noRow", "codingError", "reflection",
// "misuse", "notImplemented", "unexpected".
type Error interface {
	error
	Kind() string
}

// SQLiteError wraps an error returned by the underlying engine, preserving
// its result code, message and the SQL that produced it.
type SQLiteError struct {
	Code    int
	Message string
	SQL     string
}

func (e *SQLiteError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("easydb: sqlite error %d: %s (sql: %s)", e.Code, e.Message, e.SQL)
	}
	return fmt.Sprintf("easydb: sqlite error %d: %s", e.Code, e.Message)
}

func (e *SQLiteError) Kind() string { return "sqliteError" }

// TranslateSQLiteError wraps err in a *SQLiteError carrying its result
// code, engine message and sqlText, if err is (or wraps) a SQLite driver
// error; otherwise it returns err unchanged (spec §4.G "errors from the
// engine are translated to a structured result code paired with the
// engine's last error message and the originating SQL").
func TranslateSQLiteError(err error, sqlText string) error {
	if err == nil {
		return nil
	}
	code, message, ok := sqlitedriver.ResultCode(err)
	if !ok {
		return err
	}
	return &SQLiteError{Code: code, Message: message, SQL: sqlText}
}

// NoSuchColumnError is returned when a statement references a column name
// that does not exist in the current row.
type NoSuchColumnError struct{ Column string }

func (e *NoSuchColumnError) Error() string {
	return fmt.Sprintf("easydb: no such column: %s", e.Column)
}

func (e *NoSuchColumnError) Kind() string { return "noSuchColumn" }

// NoSuchParameterError is returned when binding references a named
// parameter that the prepared statement does not declare.
type NoSuchParameterError struct{ Parameter string }

func (e *NoSuchParameterError) Error() string {
	return fmt.Sprintf("easydb: no such parameter: %s", e.Parameter)
}

func (e *NoSuchParameterError) Kind() string { return "noSuchParameter" }

// NoRowError is returned when a row accessor is used before a successful
// step, or after the statement is exhausted.
type NoRowError struct{}

func (e *NoRowError) Error() string { return "easydb: no row available" }
func (e *NoRowError) Kind() string  { return "noRow" }

// CodingError represents a failure encoding or decoding a single value,
// naming the offending property path.
type CodingError struct {
	Message string
	Path    string
}

func (e *CodingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("easydb: coding error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("easydb: coding error: %s", e.Message)
}

func (e *CodingError) Kind() string { return "codingError" }

// ReflectionSubkind enumerates the ReflectionError variants from spec §7.
type ReflectionSubkind string

const (
	ReflectionInvalidRecordType ReflectionSubkind = "invalidRecordType"
	ReflectionNoSamples         ReflectionSubkind = "noSamples"
	ReflectionKeyPathNotFound   ReflectionSubkind = "keyPathNotFound"
	ReflectionDecodingError     ReflectionSubkind = "decodingError"
)

// ReflectionError is fatal for the affected record type but never poisons
// the database: callers should treat it as "this type cannot be used" and
// fix the type definition, not retry.
type ReflectionError struct {
	Subkind ReflectionSubkind
	Type    string
	Message string
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("easydb: reflection(%s) on %s: %s", e.Subkind, e.Type, e.Message)
}

func (e *ReflectionError) Kind() string { return "reflection" }

// MisuseError is returned when the caller violates an API contract that
// cannot be expressed in the type system (e.g. binding a slice where a
// keyed record is expected).
type MisuseError struct{ Message string }

func (e *MisuseError) Error() string { return fmt.Sprintf("easydb: misuse: %s", e.Message) }
func (e *MisuseError) Kind() string  { return "misuse" }

// NotImplementedError is returned for a recognised but unsupported
// operation, such as filtering on a nested JSON property path. Migration
// does not return it: columns carry no declared type, and a field whose Go
// type changes keeps its existing column without any error.
type NotImplementedError struct{ Feature string }

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("easydb: not implemented: %s", e.Feature)
}

func (e *NotImplementedError) Kind() string { return "notImplemented" }

// UnexpectedError wraps an invariant violation that should be impossible
// given a correct implementation; it is never expected to surface to a
// well-behaved caller.
type UnexpectedError struct{ Message string }

func (e *UnexpectedError) Error() string { return fmt.Sprintf("easydb: unexpected: %s", e.Message) }
func (e *UnexpectedError) Kind() string  { return "unexpected" }

// NotFoundError represents an error when a requested row does not exist.
type NotFoundError struct {
	label string
	id    any
}

func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("easydb: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("easydb: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError, so
// errors.Is(err, ErrNotFound) works on a returned *NotFoundError.
func (e *NotFoundError) Is(err error) bool { return err == ErrNotFound }

func (e *NotFoundError) Label() string { return e.label }
func (e *NotFoundError) ID() any       { return e.id }

// NewNotFoundError returns a new NotFoundError for the given collection label.
func NewNotFoundError(label string) *NotFoundError { return &NotFoundError{label: label} }

// NewNotFoundErrorWithID returns a new NotFoundError carrying the id searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects exactly one
// result but zero or multiple rows matched.
type NotSingularError struct {
	label string
	count int // -1 if unknown
}

func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("easydb: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("easydb: %s not singular", e.label)
}

func (e *NotSingularError) Is(err error) bool { return err == ErrNotSingular }
func (e *NotSingularError) Label() string     { return e.label }
func (e *NotSingularError) Count() int        { return e.count }

// NewNotSingularError returns a new NotSingularError with an unknown count.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if err is, or wraps, a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// ConstraintError represents a database constraint violation, such as a
// UNIQUE index conflict surfaced during a bulk write.
type ConstraintError struct {
	msg  string
	wrap error
}

func (e ConstraintError) Error() string { return fmt.Sprintf("easydb: constraint failed: %s", e.msg) }
func (e ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if err is, or wraps, a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// TranslateConstraintError reports a UNIQUE violation from err (detected
// via sqlitedriver.IsUniqueConstraint) as a ConstraintError, or returns err
// unchanged.
func TranslateConstraintError(err error) error {
	if err == nil || !sqlitedriver.IsUniqueConstraint(err) {
		return err
	}
	return NewConstraintError("UNIQUE constraint failed", err)
}

// RollbackError wraps an error that occurred while rolling back a
// transaction after block failed; both errors are preserved.
type RollbackError struct{ Err error }

func (e *RollbackError) Error() string { return fmt.Sprintf("easydb: rollback failed: %v", e.Err) }
func (e *RollbackError) Unwrap() error { return e.Err }

// AggregateError represents multiple errors collected during one
// operation. Migration does not produce it: of several index-creation
// failures it reports only the first.
type AggregateError struct{ Errors []error }

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "easydb: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("easydb: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns a new AggregateError if there are any non-nil
// errors, the single error if there is exactly one, or nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}
