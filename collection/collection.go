// Package collection implements the schema lifecycle (spec §4.I): on
// creation for a record type T it derives the table name and desired
// column set, creates or migrates the table, and reconciles indices
// against the type's collected metadata. It also hosts the per-record
// insert/save entry points and the query.QueryBuilder[T] construction
// surface (spec §6).
package collection

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/codec"
	"github.com/syssam/easydb/internal/keypath"
	"github.com/syssam/easydb/internal/sample"
	"github.com/syssam/easydb/internal/typemeta"
	"github.com/syssam/easydb/internal/value"
	"github.com/syssam/easydb/pool"
	"github.com/syssam/easydb/query"
)

// TableNamer lets a record type override its derived table name; without
// it the table name is the type's simple Go name (spec §4.I step 2).
type TableNamer interface {
	TableName() string
}

var nextIdentity int64

// Options configures a Collection's migration behaviour.
type Options struct {
	// AutoDropColumns opts into dropping unknown columns during
	// migration via a copy-rename rebuild (spec §4.I step 5); the
	// default is to leave them in place.
	AutoDropColumns bool
	// SkipMigrate binds to the table without creating or migrating it,
	// for callers who already know the schema is current.
	SkipMigrate bool
	// Logger receives every DDL/DML statement this collection issues,
	// paired with its bind arguments and measured duration.
	Logger func(sqlText string, args []any, dur time.Duration)
}

// Collection owns one record type's table: its stable identity, its
// migrated schema, and the query-builder entry points bound to it.
type Collection[T any] struct {
	id      int64
	table   string
	p       *pool.Pool
	mapper  *keypath.Mapper[T]
	fields  map[string]typemeta.FieldConfig
	columns []string
	opts    Options
}

// New derives T's schema, migrates its table against p, and returns the
// ready-to-use Collection (spec §4.I).
func New[T any](ctx context.Context, p *pool.Pool, reg *sample.Registry, opts Options) (*Collection[T], error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("collection: record type must be a struct")
	}

	mapper, err := keypath.Build[T](reg)
	if err != nil {
		return nil, err
	}
	fields, err := typemeta.Collect(typ)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = func(string, []any, time.Duration) {}
	}

	c := &Collection[T]{
		id:      atomic.AddInt64(&nextIdentity, 1),
		table:   tableName(typ),
		p:       p,
		mapper:  mapper,
		fields:  fields,
		columns: mapper.RootProperties(),
		opts:    opts,
	}
	if !opts.SkipMigrate {
		if err := c.migrate(ctx); err != nil {
			return nil, fmt.Errorf("collection: migrating %s: %w", c.table, err)
		}
	}
	return c, nil
}

func tableName(t reflect.Type) string {
	zero := reflect.New(t).Interface()
	if tn, ok := zero.(TableNamer); ok {
		if name := tn.TableName(); name != "" {
			return name
		}
	}
	return t.Name()
}

// ID returns the collection's stable process-local identity.
func (c *Collection[T]) ID() int64 { return c.id }

// Name implements query.Table[T].
func (c *Collection[T]) Name() string { return c.table }

// Mapper implements query.Table[T].
func (c *Collection[T]) Mapper() *keypath.Mapper[T] { return c.mapper }

// ColumnFor implements query.Table[T]. Nested property paths are accepted
// by the mapper but rejected here as not implemented (spec §4.D/§4.J:
// only root properties have a column).
func (c *Collection[T]) ColumnFor(path codec.Path) (string, error) {
	if len(path) != 1 {
		return "", &apperror.NotImplementedError{Feature: fmt.Sprintf("querying nested property path %q", path)}
	}
	return path[0], nil
}

// DefaultCollation implements query.Table[T].
func (c *Collection[T]) DefaultCollation(column string) string {
	if cfg, ok := c.fields[column]; ok && cfg.Collation != "" {
		return cfg.Collation
	}
	return "string"
}

// IdentityColumn implements query.Table[T].
func (c *Collection[T]) IdentityColumn() (string, bool) {
	for name, cfg := range c.fields {
		if cfg.Identity {
			return name, true
		}
	}
	return "", false
}

// Pool implements query.Table[T].
func (c *Collection[T]) Pool() *pool.Pool { return c.p }

// Log implements query.Table[T].
func (c *Collection[T]) Log(sqlText string, args []any, dur time.Duration) {
	c.opts.Logger(sqlText, args, dur)
}

// RecordType implements query.Table[T].
func (c *Collection[T]) RecordType() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

// All returns an unfiltered query builder over this collection.
func (c *Collection[T]) All() *query.QueryBuilder[T] { return query.New[T](c) }

// OnConflict selects a bulk-insert conflict policy, mirroring SQLite's
// "INSERT OR <X>" forms (spec §6 "insert(record|[record], onConflict?)").
type OnConflict int

const (
	// OnConflictFail aborts the statement (and, inside Insert's shared
	// transaction, the whole batch) on a constraint violation. Default.
	OnConflictFail OnConflict = iota
	// OnConflictIgnore skips the conflicting row and leaves the existing
	// row untouched.
	OnConflictIgnore
	// OnConflictReplace deletes the conflicting row and inserts the new
	// one in its place.
	OnConflictReplace
)

func (o OnConflict) clause() string {
	switch o {
	case OnConflictIgnore:
		return "INSERT OR IGNORE"
	case OnConflictReplace:
		return "INSERT OR REPLACE"
	default:
		return "INSERT"
	}
}

// Insert binds each record's top-level fields as columns and inserts it
// under the default OnConflictFail policy. Multiple records are wrapped in
// a single transaction: one failing record rolls the whole batch back
// (spec §4.H "Bulk inserts/saves").
func (c *Collection[T]) Insert(ctx context.Context, records ...T) error {
	return c.InsertOnConflict(ctx, OnConflictFail, records...)
}

// InsertOnConflict is Insert with an explicit conflict policy (spec §6
// "insert(record|[record], onConflict?)").
func (c *Collection[T]) InsertOnConflict(ctx context.Context, onConflict OnConflict, records ...T) error {
	if len(records) == 0 {
		return nil
	}
	return c.p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, rec := range records {
			fields, err := codec.Fields(rec)
			if err != nil {
				return err
			}
			if err := c.insertOne(ctx, tx, onConflict, fields); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Collection[T]) insertOne(ctx context.Context, tx *sql.Tx, onConflict OnConflict, fields map[string]value.Value) error {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
		args[i] = fields[col].Driver()
	}
	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		onConflict.clause(), quoteIdent(c.table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	start := time.Now()
	_, err := tx.ExecContext(ctx, stmt, args...)
	c.Log(stmt, args, time.Since(start))
	if err != nil {
		return apperror.TranslateConstraintError(apperror.TranslateSQLiteError(err, stmt))
	}
	return nil
}

// Save upserts a record by its identity column: insert if absent, update
// every column otherwise. T must have an identity field.
func (c *Collection[T]) Save(ctx context.Context, rec T) error {
	idCol, ok := c.IdentityColumn()
	if !ok {
		return fmt.Errorf("collection: %s has no identity field; use Insert", c.table)
	}
	fields, err := codec.Fields(rec)
	if err != nil {
		return err
	}
	idVal, ok := fields[idCol]
	if !ok {
		return fmt.Errorf("collection: record missing identity column %q", idCol)
	}

	return c.p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		q := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", quoteIdent(c.table), quoteIdent(idCol))
		row := tx.QueryRowContext(ctx, q, idVal.Driver())
		err := row.Scan(&exists)
		switch {
		case err == sql.ErrNoRows:
			return c.insertOne(ctx, tx, OnConflictFail, fields)
		case err != nil:
			return err
		default:
			return c.updateOne(ctx, tx, idCol, idVal.Driver(), fields)
		}
	})
}

func (c *Collection[T]) updateOne(ctx context.Context, tx *sql.Tx, idCol string, idVal any, fields map[string]value.Value) error {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if col == idCol {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = ?", quoteIdent(col))
		args = append(args, fields[col].Driver())
	}
	args = append(args, idVal)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(c.table), strings.Join(sets, ", "), quoteIdent(idCol))

	start := time.Now()
	_, err := tx.ExecContext(ctx, stmt, args...)
	c.Log(stmt, args, time.Since(start))
	if err != nil {
		return apperror.TranslateConstraintError(apperror.TranslateSQLiteError(err, stmt))
	}
	return nil
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
