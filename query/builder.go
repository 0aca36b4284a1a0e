// Package query implements the query builder (spec §4.J): a composable
// filter/orderBy/limit/offset/delete/update builder whose field
// references always go through a typed field-path selector, resolved
// against the owning collection's key-path mapper (internal/keypath)
// rather than bare column-name strings.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/codec"
	"github.com/syssam/easydb/internal/keypath"
	"github.com/syssam/easydb/internal/value"
	"github.com/syssam/easydb/pool"
)

// ErrNoRows is returned by FetchOne when the query matches no row. It is a
// *apperror.NoRowError underneath (spec §7 "noRow"), so callers can
// discriminate on it via easydb.Error's Kind() as well as errors.Is.
var ErrNoRows error = &apperror.NoRowError{}

// Table is the minimal surface a QueryBuilder needs from its owning
// collection: enough to resolve field paths to columns, run SQL against
// the right pool, and decode rows back into T.
type Table[T any] interface {
	Name() string
	Mapper() *keypath.Mapper[T]
	ColumnFor(path codec.Path) (string, error)
	DefaultCollation(column string) string
	IdentityColumn() (string, bool)
	Pool() *pool.Pool
	Log(sqlText string, args []any, dur time.Duration)
	RecordType() reflect.Type
}

// QueryBuilder accumulates filter/order/limit/update/delete state for one
// statement against table. Build one with New or a Collection's All
// entry point, chain builder calls, then call FetchOne, FetchMany, or
// Exec.
type QueryBuilder[T any] struct {
	table     Table[T]
	filters   []predicate
	orders    []orderClause
	limitN    *int
	offsetN   *int
	updates   []setClause
	customSet *SQLFragment
	doDelete  bool
	err       error
}

// New returns an unfiltered builder over table (spec §4.J `all()`).
func New[T any](table Table[T]) *QueryBuilder[T] {
	return &QueryBuilder[T]{table: table}
}

// Limit caps the result set to n rows.
func (qb *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	qb.limitN = &n
	return qb
}

// Offset skips the first n matching rows.
func (qb *QueryBuilder[T]) Offset(n int) *QueryBuilder[T] {
	qb.offsetN = &n
	return qb
}

// Delete marks the builder as a DELETE statement.
func (qb *QueryBuilder[T]) Delete() *QueryBuilder[T] {
	qb.doDelete = true
	return qb
}

// UpdateFragment sets a custom SET clause for an UPDATE statement,
// superseding any Update(fieldPath, value) calls (spec §4.J
// "update(customFragment) for custom SET clauses").
func (qb *QueryBuilder[T]) UpdateFragment(frag *SQLFragment) *QueryBuilder[T] {
	qb.customSet = frag
	return qb
}

// FilterID is a shortcut for equality on the identity field (spec §4.J
// "filter(id: value)").
func FilterID[T any](qb *QueryBuilder[T], id any) *QueryBuilder[T] {
	if qb.err != nil {
		return qb
	}
	col, ok := qb.table.IdentityColumn()
	if !ok {
		qb.err = fmt.Errorf("query: record type has no identity field")
		return qb
	}
	qb.filters = append(qb.filters, predicate{column: col, op: OpEQ, value: id, collation: qb.table.DefaultCollation(col)})
	return qb
}

// Filter adds a `column op value` predicate, resolving fp against the
// table's key-path mapper. An additional generic type parameter can't be
// attached to a QueryBuilder method (Go forbids extra type parameters on
// methods), so Filter is a free function, mirroring keypath.Lookup.
func Filter[T any, V any](qb *QueryBuilder[T], fp keypath.FieldPath[T, V], op Op, val V, collationOverride ...string) *QueryBuilder[T] {
	if qb.err != nil {
		return qb
	}
	column, collation, err := resolve(qb.table, fp, collationOverride...)
	if err != nil {
		qb.err = err
		return qb
	}
	effOp, effVal := op, any(val)
	if op == OpEQ && isNilValue(val) {
		effOp, effVal = OpIsNull, nil
	}
	qb.filters = append(qb.filters, predicate{column: column, op: effOp, value: effVal, collation: collation})
	return qb
}

// OrderBy adds an ORDER BY clause (spec §4.J "orderBy(fieldPath,
// direction?, nulls?, collation?)"); multiple calls concatenate.
func OrderBy[T any, V any](qb *QueryBuilder[T], fp keypath.FieldPath[T, V], dir Direction, nulls Nulls, collationOverride ...string) *QueryBuilder[T] {
	if qb.err != nil {
		return qb
	}
	column, collation, err := resolve(qb.table, fp, collationOverride...)
	if err != nil {
		qb.err = err
		return qb
	}
	if dir == "" {
		dir = Asc
	}
	qb.orders = append(qb.orders, orderClause{column: column, dir: dir, nulls: nulls, collation: collation})
	return qb
}

// Update stages a single-column SET clause for an UPDATE statement; chain
// multiple Update calls for a multi-column update (spec §4.J
// "updating(…).updating(…).update()").
func Update[T any, V any](qb *QueryBuilder[T], fp keypath.FieldPath[T, V], val V) *QueryBuilder[T] {
	if qb.err != nil {
		return qb
	}
	path, err := keypath.Lookup(qb.table.Mapper(), fp)
	if err != nil {
		qb.err = err
		return qb
	}
	column, err := qb.table.ColumnFor(path)
	if err != nil {
		qb.err = err
		return qb
	}
	enc, err := value.Encode(val)
	if err != nil {
		qb.err = fmt.Errorf("query: encoding update value for %s: %w", column, err)
		return qb
	}
	qb.updates = append(qb.updates, setClause{column: column, value: enc.Driver()})
	return qb
}

func resolve[T any, V any](table Table[T], fp keypath.FieldPath[T, V], collationOverride ...string) (column, collation string, err error) {
	path, err := keypath.Lookup(table.Mapper(), fp)
	if err != nil {
		return "", "", err
	}
	column, err = table.ColumnFor(path)
	if err != nil {
		return "", "", err
	}
	collation = table.DefaultCollation(column)
	if len(collationOverride) > 0 && collationOverride[0] != "" {
		collation = collationOverride[0]
	}
	return column, collation, nil
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func renderPredicate(p predicate) (string, []any) {
	col := quoteIdent(p.column)
	if p.collation != "" {
		col = fmt.Sprintf("%s COLLATE %s", col, quoteIdent(p.collation))
	}
	switch p.op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", col, p.op), nil
	default:
		return fmt.Sprintf("%s %s ?", col, p.op), []any{p.value}
	}
}

func (qb *QueryBuilder[T]) renderWhere(b *strings.Builder, args []any) []any {
	if len(qb.filters) == 0 {
		return args
	}
	b.WriteString(" WHERE ")
	for i, p := range qb.filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		frag, fargs := renderPredicate(p)
		b.WriteString(frag)
		args = append(args, fargs...)
	}
	return args
}

func (qb *QueryBuilder[T]) renderSelect() (string, []any, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	var b strings.Builder
	var args []any
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(qb.table.Name()))
	args = qb.renderWhere(&b, args)
	if len(qb.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range qb.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s COLLATE %s %s", quoteIdent(o.column), quoteIdent(o.collation), o.dir)
			if o.nulls != NullsDefault {
				fmt.Fprintf(&b, " NULLS %s", o.nulls)
			}
		}
	}
	if qb.limitN != nil {
		fmt.Fprintf(&b, " LIMIT %d", *qb.limitN)
	}
	if qb.offsetN != nil {
		fmt.Fprintf(&b, " OFFSET %d", *qb.offsetN)
	}
	return b.String(), args, nil
}

func (qb *QueryBuilder[T]) renderDelete() (string, []any, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	var b strings.Builder
	var args []any
	b.WriteString("DELETE FROM ")
	b.WriteString(quoteIdent(qb.table.Name()))
	args = qb.renderWhere(&b, args)
	return b.String(), args, nil
}

func (qb *QueryBuilder[T]) renderUpdate() (string, []any, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	var setSQL string
	var args []any
	if qb.customSet != nil {
		setSQL, args = qb.customSet.Render()
	} else {
		if len(qb.updates) == 0 {
			return "", nil, fmt.Errorf("query: update() called with no fields staged")
		}
		parts := make([]string, len(qb.updates))
		for i, u := range qb.updates {
			parts[i] = fmt.Sprintf("%s = ?", quoteIdent(u.column))
			args = append(args, u.value)
		}
		setSQL = strings.Join(parts, ", ")
	}
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(qb.table.Name()))
	b.WriteString(" SET ")
	b.WriteString(setSQL)
	args = qb.renderWhere(&b, args)
	return b.String(), args, nil
}

// FetchOne returns the first matching row, decoded into T. Decoding stops
// after the first row: a later row that would fail to decode never
// surfaces an error if it is never read (spec §4.J).
func (qb *QueryBuilder[T]) FetchOne(ctx context.Context) (T, error) {
	var zero T
	sqlText, args, err := qb.renderSelect()
	if err != nil {
		return zero, err
	}
	var (
		result  T
		found   bool
		decErr  error
	)
	err = qb.table.Pool().Read(ctx, func(ctx context.Context, conn *sql.Conn) error {
		start := time.Now()
		rows, err := conn.QueryContext(ctx, sqlText, args...)
		qb.table.Log(sqlText, args, time.Since(start))
		if err != nil {
			return apperror.TranslateSQLiteError(err, sqlText)
		}
		defer rows.Close()
		if !rows.Next() {
			return apperror.TranslateSQLiteError(rows.Err(), sqlText)
		}
		found = true
		rec, err := decodeRow(rows, qb.table.RecordType())
		if err != nil {
			decErr = err
			return nil
		}
		result = rec.(T)
		return nil
	})
	if err != nil {
		return zero, err
	}
	if decErr != nil {
		return zero, decErr
	}
	if !found {
		return zero, ErrNoRows
	}
	return result, nil
}

// FetchMany returns every matching row, decoded into T.
func (qb *QueryBuilder[T]) FetchMany(ctx context.Context) ([]T, error) {
	sqlText, args, err := qb.renderSelect()
	if err != nil {
		return nil, err
	}
	var out []T
	err = qb.table.Pool().Read(ctx, func(ctx context.Context, conn *sql.Conn) error {
		start := time.Now()
		rows, err := conn.QueryContext(ctx, sqlText, args...)
		qb.table.Log(sqlText, args, time.Since(start))
		if err != nil {
			return apperror.TranslateSQLiteError(err, sqlText)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := decodeRow(rows, qb.table.RecordType())
			if err != nil {
				return err
			}
			out = append(out, rec.(T))
		}
		return apperror.TranslateSQLiteError(rows.Err(), sqlText)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Exec runs the builder's DELETE or UPDATE statement and returns the
// number of affected rows.
func (qb *QueryBuilder[T]) Exec(ctx context.Context) (int64, error) {
	var sqlText string
	var args []any
	var err error
	switch {
	case qb.doDelete:
		sqlText, args, err = qb.renderDelete()
	case len(qb.updates) > 0 || qb.customSet != nil:
		sqlText, args, err = qb.renderUpdate()
	default:
		return 0, fmt.Errorf("query: Exec called without delete() or update() configured")
	}
	if err != nil {
		return 0, err
	}
	var affected int64
	err = qb.table.Pool().Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		start := time.Now()
		res, err := tx.ExecContext(ctx, sqlText, args...)
		qb.table.Log(sqlText, args, time.Since(start))
		if err != nil {
			return apperror.TranslateConstraintError(apperror.TranslateSQLiteError(err, sqlText))
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func decodeRow(rows *sql.Rows, target reflect.Type) (any, error) {
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
