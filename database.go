// Package easydb is a document-oriented, schemaless embedded database
// library atop SQLite: arbitrary Go struct record types are bound to
// tables by reflection, with no migration files and no query language
// beyond a typed, field-path-checked query builder.
package easydb

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/syssam/easydb/collection"
	"github.com/syssam/easydb/internal/codec"
	"github.com/syssam/easydb/internal/collation"
	"github.com/syssam/easydb/internal/sample"
	"github.com/syssam/easydb/internal/value"
	"github.com/syssam/easydb/pool"
	"github.com/syssam/easydb/query"
)

// Database is the library's top-level handle (spec §6): one write
// connection, a bounded pool of read connections, and a cache of
// migrated collections, one per record type in use.
type Database struct {
	pool        *pool.Pool
	opts        Options
	collations  *collation.Registry
	samples     *sample.Registry
	collections *collectionCache
}

// Open opens location — a file path or ":memory:" — in WAL mode (spec §6
// "open(location, {autoMigrate, autoDropColumns, sqlLogger})").
func Open(ctx context.Context, location string, opts Options) (*Database, error) {
	opts = opts.withDefaults()
	reg := collation.NewRegistry()
	p, err := pool.Open(ctx, location, reg, pool.Options{
		MaxReadConns:      opts.MaxReadConns,
		BusyTimeoutMillis: opts.BusyTimeoutMillis,
	})
	if err != nil {
		return nil, err
	}
	return &Database{
		pool:        p,
		opts:        opts,
		collations:  reg,
		samples:     sample.NewRegistry(),
		collections: newCollectionCache(),
	}, nil
}

// Close releases the database's connections.
func (db *Database) Close() error { return db.pool.Close() }

// Pool exposes the underlying connection pool, for callers that need
// direct access to resource stats or the engine-level interrupt hook.
func (db *Database) Pool() *pool.Pool { return db.pool }

// RegisterCollation installs a custom comparator under name (case-folded
// at lookup, spec §3/§4.F). It is safe to call after Open: every future
// read connection picks the collation up through its own ConnectHook, and
// this call additionally installs it on the pool's pinned write
// connection directly, so DDL issued against that connection (e.g.
// migration's COLLATE-qualified indices) can use it too.
func (db *Database) RegisterCollation(name string, cmp collation.Comparator) error {
	db.collations.Register(name, cmp)
	return db.pool.RegisterCollation(name, cmp)
}

// RegisterSample overrides the sample-value pair the key-path mapper uses
// for leaf type typ (spec §4.C), for leaf types the library has no
// built-in pair for.
func (db *Database) RegisterSample(typ reflect.Type, zero, one any) {
	db.samples.Register(typ, zero, one)
}

// CollectionFor returns the migrated Collection for record type T,
// creating and migrating its table on first use and caching the result
// for subsequent calls (spec §6 "database.collection(T)"). An additional
// type parameter can't be attached to a Database method, so this is a
// free function, mirroring query.Filter and keypath.Lookup.
func CollectionFor[T any](ctx context.Context, db *Database) (*collection.Collection[T], error) {
	var zero T
	typ := reflect.TypeOf(zero)
	cached, err := db.collections.loadOrStore(typ, func() (any, error) {
		return collection.New[T](ctx, db.pool, db.samples, collection.Options{
			AutoDropColumns: db.opts.AutoDropColumns,
			SkipMigrate:     db.opts.DisableAutoMigrate,
			Logger:          db.opts.SQLLogger,
		})
	})
	if err != nil {
		return nil, err
	}
	return cached.(*collection.Collection[T]), nil
}

// Write runs fn inside a transactional write scope (spec §6
// "database.write(block)"). A nested Write or Collection write call made
// with the ctx passed to fn re-enters via a savepoint rather than
// deadlocking (spec §4.H "Reentrancy").
func (db *Database) Write(ctx context.Context, fn func(context.Context) error) error {
	return db.pool.Write(ctx, func(ctx context.Context, _ *sql.Tx) error { return fn(ctx) })
}

// Read runs fn inside a read-only scope (spec §6 "database.read(block)"):
// attempts to mutate inside fn fail with a readonly-database error.
func (db *Database) Read(ctx context.Context, fn func(context.Context) error) error {
	return db.pool.Read(ctx, func(ctx context.Context, _ *sql.Conn) error { return fn(ctx) })
}

// Execute runs a raw SQL fragment with no decoded result (spec §6
// "database.execute(sql)").
func (db *Database) Execute(ctx context.Context, frag *query.SQLFragment) (int64, error) {
	sqlText, args := frag.Render()
	var affected int64
	err := db.pool.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// ExecuteQuery runs a raw SQL fragment and decodes every returned row
// into R (spec §6 "database.execute(ResultType, sql)").
func ExecuteQuery[R any](ctx context.Context, db *Database, frag *query.SQLFragment) ([]R, error) {
	sqlText, args := frag.Render()
	target := reflect.TypeOf(*new(R))
	var out []R
	err := db.pool.Read(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := decodeRawRow(rows, target)
			if err != nil {
				return err
			}
			out = append(out, rec.(R))
		}
		return rows.Err()
	})
	return out, err
}

func decodeRawRow(rows *sql.Rows, target reflect.Type) (any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	values := make([]value.Value, len(cols))
	for i, r := range raw {
		v, err := value.FromDriver(r)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return codec.DecodeRecord(cols, values, target)
}
