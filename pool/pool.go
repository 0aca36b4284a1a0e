// Package pool implements the connection pool & transaction manager
// (spec §4.H): one exclusive write connection plus a bounded pool of read
// connections over a WAL-mode SQLite database.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/collation"
	"github.com/syssam/easydb/internal/sqlitedriver"
)

// writeState threads the nested-write depth down through context.Context,
// mirroring the teacher's ctxVarsKey pattern for session-scoped state
// (spec §4.H "Reentrancy").
type writeState struct {
	tx    *sql.Tx
	depth int
}

type ctxKey struct{}

// Pool owns the database's single write connection and a semaphore-bounded
// set of read connections.
type Pool struct {
	db       *sql.DB
	write    *sql.Conn
	writeMu  sync.Mutex
	readSem  *semaphore.Weighted
	maxReads int64

	activeReads int64
}

// Options configures pool construction; it mirrors the subset of
// easydb.Options the pool itself needs.
type Options struct {
	MaxReadConns int
	BusyTimeoutMillis int
}

var memorySeq int64

// Open opens dsn in WAL mode, installs reg's collations on every new
// connection, and pins one write connection. ":memory:" opens a private
// shared-cache in-memory database that all of the pool's connections see.
func Open(ctx context.Context, dsn string, reg *collation.Registry, opts Options) (*Pool, error) {
	if opts.MaxReadConns <= 0 {
		opts.MaxReadConns = 4
	}
	if dsn == ":memory:" {
		dsn = fmt.Sprintf("file:easydb-memory-%d?mode=memory&cache=shared", atomic.AddInt64(&memorySeq, 1))
	}
	db, err := sqlitedriver.Open(dsn, reg)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(0)
	if err := sqlitedriver.EnableWAL(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("pool: enabling WAL: %w", err)
	}
	write, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pool: acquiring write connection: %w", err)
	}
	if opts.BusyTimeoutMillis > 0 {
		if err := sqlitedriver.SetBusyTimeout(ctx, write, opts.BusyTimeoutMillis); err != nil {
			write.Close()
			db.Close()
			return nil, err
		}
	}
	return &Pool{
		db:       db,
		write:    write,
		readSem:  semaphore.NewWeighted(int64(opts.MaxReadConns)),
		maxReads: int64(opts.MaxReadConns),
	}, nil
}

// DB returns the underlying *sql.DB, for callers that need PRAGMA access
// or raw connections (e.g. collection migration).
func (p *Pool) DB() *sql.DB { return p.db }

// RegisterCollation installs cmp under name on the pool's pinned write
// connection. Every read connection is opened fresh per Read call and so
// picks up a newly registered collation through ConnectHook automatically;
// the write connection is opened exactly once in Open and never reopened,
// so a collation registered afterwards needs this explicit installation to
// reach it too (spec §4.F) — otherwise DDL that references the collation
// (e.g. a COLLATE clause on an index) fails on the write connection with
// "no such collation sequence".
func (p *Pool) RegisterCollation(name string, cmp collation.Comparator) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return sqlitedriver.RegisterCollation(p.write, name, cmp)
}

// Close releases the write connection and closes the pool.
func (p *Pool) Close() error {
	err := p.write.Close()
	return errors.Join(err, p.db.Close())
}

// Interrupt forwards to the write connection's engine interrupt primitive
// (spec §5 "MAY expose a best-effort cancel").
func (p *Pool) Interrupt() error {
	return sqlitedriver.Interrupt(p.write)
}

// Write acquires the write lock, begins a transaction (or a savepoint if
// ctx is already inside one), and runs fn. fn's return value decides
// commit vs rollback. A nested Write call — passed the *same* ctx
// returned by the outer Write invocation — re-enters without
// re-acquiring the lock, using a savepoint instead of a fresh
// transaction (spec §4.H "Reentrancy").
func (p *Pool) Write(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	if ws, ok := ctx.Value(ctxKey{}).(*writeState); ok {
		return p.writeSavepoint(ctx, ws, fn)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	tx, err := p.write.BeginTx(ctx, nil)
	if err != nil {
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: begin transaction: %w", err), "BEGIN")
	}
	ws := &writeState{tx: tx}
	nctx := context.WithValue(ctx, ctxKey{}, ws)

	if err := fn(nctx, tx); err != nil {
		err = apperror.TranslateConstraintError(apperror.TranslateSQLiteError(err, ""))
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, &apperror.RollbackError{Err: rbErr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: commit: %w", err), "COMMIT")
	}
	return nil
}

func (p *Pool) writeSavepoint(ctx context.Context, ws *writeState, fn func(context.Context, *sql.Tx) error) error {
	ws.depth++
	name := fmt.Sprintf("easydb_sp_%d", ws.depth)
	stmt := "SAVEPOINT " + name
	if _, err := ws.tx.ExecContext(ctx, stmt); err != nil {
		ws.depth--
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: savepoint %s: %w", name, err), stmt)
	}
	if err := fn(ctx, ws.tx); err != nil {
		err = apperror.TranslateConstraintError(apperror.TranslateSQLiteError(err, ""))
		if _, rbErr := ws.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			ws.depth--
			return errors.Join(err, &apperror.RollbackError{Err: rbErr})
		}
		ws.depth--
		return err
	}
	relStmt := "RELEASE SAVEPOINT " + name
	_, relErr := ws.tx.ExecContext(ctx, relStmt)
	ws.depth--
	if relErr != nil {
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: release savepoint %s: %w", name, relErr), relStmt)
	}
	return nil
}

// InWrite reports whether ctx is already inside a Write block (i.e. a
// nested Write on this ctx would open a savepoint rather than a new
// transaction).
func InWrite(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKey{}).(*writeState)
	return ok
}

// Read checks out a read connection, marks it query_only, runs fn, and
// returns the connection to the pool. Concurrent Read calls are bounded
// by MaxReadConns.
func (p *Pool) Read(ctx context.Context, fn func(context.Context, *sql.Conn) error) error {
	if err := p.readSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("pool: acquiring read connection: %w", err)
	}
	atomic.AddInt64(&p.activeReads, 1)
	defer func() {
		atomic.AddInt64(&p.activeReads, -1)
		p.readSem.Release(1)
	}()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: checking out read connection: %w", err), "")
	}
	defer conn.Close()

	if err := sqlitedriver.SetQueryOnly(ctx, conn); err != nil {
		return apperror.TranslateSQLiteError(fmt.Errorf("pool: setting query_only: %w", err), "")
	}
	if err := fn(ctx, conn); err != nil {
		return apperror.TranslateSQLiteError(err, "")
	}
	return nil
}
