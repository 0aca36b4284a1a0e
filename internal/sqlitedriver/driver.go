// Package sqlitedriver is the thin connection & statement layer (spec
// §4.G): it wraps database/sql over github.com/mattn/go-sqlite3, installs
// the collation registry on every new connection, and translates engine
// errors into a dialect-neutral result code the caller can turn into a
// typed easydb error.
package sqlitedriver

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/syssam/easydb/internal/collation"
)

var driverSeq int64

// Open opens a database/sql connection pool against dsn. Every new
// connection the pool creates has the collation registry's entries
// installed via ConnectHook before it is handed back (spec §4.F
// "installed on connection open"). dsn may be a file path or
// "file::memory:?cache=shared".
func Open(dsn string, reg *collation.Registry) (*sql.DB, error) {
	name := fmt.Sprintf("sqlite3-easydb-%d", atomic.AddInt64(&driverSeq, 1))
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, n := range reg.Names() {
				cmp, ok := reg.Lookup(n)
				if !ok {
					continue
				}
				if err := conn.RegisterCollation(n, cmp); err != nil {
					return fmt.Errorf("sqlitedriver: registering collation %q: %w", n, err)
				}
			}
			return nil
		},
	})
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitedriver: open %q: %w", dsn, err)
	}
	return db, nil
}

// RegisterCollation installs cmp under name directly on conn's underlying
// driver connection. Open's ConnectHook only ever runs once, at connection
// creation time, so a collation registered into reg after a connection
// already exists (notably the pool's single pinned write connection) needs
// this explicit, out-of-band installation instead (spec §4.F).
func RegisterCollation(conn *sql.Conn, name string, cmp collation.Comparator) error {
	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("sqlitedriver: unexpected driver connection type %T", driverConn)
		}
		return c.RegisterCollation(name, cmp)
	})
}

// EnableWAL switches db's journal mode to WAL (spec §6 "journal mode
// WAL").
func EnableWAL(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	return err
}

// SetQueryOnly marks conn read-only so mutating statements fail with
// "attempt to write a readonly database" (spec §4.H "read(block)").
func SetQueryOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "PRAGMA query_only = ON;")
	return err
}

// SetBusyTimeout configures SQLite's busy handler on conn.
func SetBusyTimeout(ctx context.Context, conn *sql.Conn, millis int) error {
	_, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d;", millis))
	return err
}

// Interrupt cancels any statement currently executing on conn (spec §5
// "MAY expose a best-effort cancel").
func Interrupt(conn *sql.Conn) error {
	var raw *sqlite3.SQLiteConn
	err := conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("sqlitedriver: unexpected driver connection type %T", driverConn)
		}
		raw = c
		return nil
	})
	if err != nil {
		return err
	}
	raw.Interrupt()
	return nil
}
