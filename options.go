package easydb

import (
	"log"
	"time"
)

// SQLLogger is a pluggable sink receiving each statement a Collection or
// its query builders issue, with its bind arguments and measured duration,
// on each statement's first step (spec §6 "Logging"). Statements run by
// Database.Execute and ExecuteQuery, and transaction-control statements
// (BEGIN, SAVEPOINT, COMMIT, ROLLBACK), are not passed to it.
type SQLLogger func(sqlText string, args []any, duration time.Duration)

// NopLogger discards every statement; it is the default when no logger
// is configured.
func NopLogger(string, []any, time.Duration) {}

// StdLogger logs every statement through the standard library's log
// package, for convenience during development.
func StdLogger(sqlText string, args []any, duration time.Duration) {
	log.Printf("easydb: %s %v (%s)", sqlText, args, duration)
}

// Options configures Open.
type Options struct {
	// DisableAutoMigrate skips CollectionFor's create/migrate step,
	// binding directly to a table whose schema is already known to be
	// current. By default (false) every CollectionFor call migrates
	// synchronously (spec §6 "autoMigrate").
	DisableAutoMigrate bool

	// AutoDropColumns opts into dropping columns the current record
	// type no longer declares, via a copy-rename rebuild (spec §4.I
	// step 5). Off by default: unknown columns are left in place.
	AutoDropColumns bool

	// SQLLogger receives the statements that Collections and their query
	// builders render; see SQLLogger for what it does not receive.
	// Defaults to NopLogger.
	SQLLogger SQLLogger

	// MaxReadConns bounds the number of concurrent read connections.
	// Defaults to 4.
	MaxReadConns int

	// BusyTimeoutMillis sets the write connection's busy_timeout.
	BusyTimeoutMillis int
}

func (o Options) withDefaults() Options {
	if o.SQLLogger == nil {
		o.SQLLogger = NopLogger
	}
	return o
}
