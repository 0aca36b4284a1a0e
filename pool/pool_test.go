package pool_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb/internal/collation"
	"github.com/syssam/easydb/internal/sqlitedriver"
	"github.com/syssam/easydb/pool"
)

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	ctx := context.Background()
	p, err := pool.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", collation.NewRegistry(), pool.Options{MaxReadConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	_, err = p.DB().ExecContext(ctx, "CREATE TABLE items (n INTEGER)")
	require.NoError(t, err)
	return p
}

func insert(ctx context.Context, tx *sql.Tx, n int) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO items (n) VALUES (?)", n)
	return err
}

func allItems(t *testing.T, p *pool.Pool) []int {
	t.Helper()
	rows, err := p.DB().Query("SELECT n FROM items ORDER BY n")
	require.NoError(t, err)
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		require.NoError(t, rows.Scan(&n))
		out = append(out, n)
	}
	return out
}

func TestWrite_CommitsOnSuccess(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	err := p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insert(ctx, tx, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, allItems(t, p))
}

func TestWrite_RollsBackOnError(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	err := p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insert(ctx, tx, 1); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)
	assert.Empty(t, allItems(t, p))
}

func TestWrite_NestedSavepointRollsBackOnlyInner(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	err := p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insert(ctx, tx, 1); err != nil {
			return err
		}

		assert.True(t, pool.InWrite(ctx))
		innerErr := p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
			if err := insert(ctx, tx, 2); err != nil {
				return err
			}
			return assert.AnError
		})
		// The inner failure is swallowed by the outer block, as in the
		// rollback scenario's "nested: inner raises (swallowed)" case.
		assert.Error(t, innerErr)

		return insert(ctx, tx, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, allItems(t, p))
}

func TestWrite_BulkInsertRollsBackWholeBatchOnConstraintViolation(t *testing.T) {
	ctx := context.Background()
	p, err := pool.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", collation.NewRegistry(), pool.Options{MaxReadConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	_, err = p.DB().ExecContext(ctx, "CREATE TABLE uniq (n INTEGER UNIQUE)")
	require.NoError(t, err)

	writeErr := p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, n := range []int{1, 2, 1} {
			if _, err := tx.ExecContext(ctx, "INSERT INTO uniq (n) VALUES (?)", n); err != nil {
				return err
			}
		}
		return nil
	})
	assert.Error(t, writeErr)

	rows, err := p.DB().Query("SELECT count(*) FROM uniq")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var count int
	require.NoError(t, rows.Scan(&count))
	assert.Equal(t, 0, count)
}

func TestRead_ConnectionIsQueryOnly(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	err := p.Read(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "INSERT INTO items (n) VALUES (99)")
		return err
	})
	require.Error(t, err)
	assert.True(t, sqlitedriver.IsReadOnly(err))
}

func TestRead_SeesCommittedWrites(t *testing.T) {
	p := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insert(ctx, tx, 42)
	}))

	var got int
	err := p.Read(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT n FROM items WHERE n = 42")
		return row.Scan(&got)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestInWrite_FalseOutsideWriteBlock(t *testing.T) {
	assert.False(t, pool.InWrite(context.Background()))
}
