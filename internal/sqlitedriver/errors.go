package sqlitedriver

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ResultCode extracts the SQLite primary result code and message from err,
// if err (or something it wraps) is a *sqlite3.Error. The caller pairs
// this with the originating SQL text to build a typed SQLiteError (spec
// §4.G "errors from the engine are translated to a structured result
// code paired with the engine's last error message and the originating
// SQL").
func ResultCode(err error) (code int, message string, ok bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return int(sqliteErr.Code), sqliteErr.Error(), true
	}
	return 0, "", false
}

// IsUniqueConstraint reports whether err is a SQLite UNIQUE constraint
// violation.
func IsUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// IsReadOnly reports whether err is SQLite's "attempt to write a readonly
// database" error (spec §4.H "read(block)").
func IsReadOnly(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrReadonly
}

// IsInterrupt reports whether err originates from an interrupted
// statement (spec §5 "on interrupt, the in-flight statement's step
// returns an interrupt error").
func IsInterrupt(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrInterrupt
}
