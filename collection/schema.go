package collection

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/typemeta"
)

func (c *Collection[T]) migrate(ctx context.Context) error {
	return c.p.Write(ctx, func(ctx context.Context, tx *sql.Tx) error {
		exists, err := tableExists(ctx, tx, c.table)
		if err != nil {
			return err
		}
		if !exists {
			if err := c.createTable(ctx, tx); err != nil {
				return err
			}
		} else if err := c.reconcileColumns(ctx, tx); err != nil {
			return err
		}
		return c.reconcileIndices(ctx, tx)
	})
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// createTable issues an untyped CREATE TABLE — all type affinity is
// implicit, since values travel as their natural tag (spec §4.I step 4).
func (c *Collection[T]) createTable(ctx context.Context, tx *sql.Tx) error {
	cols := make([]string, len(c.columns))
	for i, name := range c.columns {
		cols[i] = quoteIdent(name)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(c.table), strings.Join(cols, ", "))
	return c.exec(ctx, tx, stmt)
}

func tableInfo(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (c *Collection[T]) reconcileColumns(ctx context.Context, tx *sql.Tx) error {
	existing, err := tableInfo(ctx, tx, c.table)
	if err != nil {
		return err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, col := range existing {
		existingSet[col] = true
	}
	desiredSet := make(map[string]bool, len(c.columns))
	for _, col := range c.columns {
		desiredSet[col] = true
	}

	var added []string
	for _, name := range c.columns {
		if existingSet[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(c.table), quoteIdent(name))
		if err := c.exec(ctx, tx, stmt); err != nil {
			return err
		}
		added = append(added, name)
	}

	var dropped []string
	for _, name := range existing {
		if !desiredSet[name] {
			dropped = append(dropped, name)
		}
	}
	c.logRenameHints(dropped, added)

	if len(dropped) > 0 && c.opts.AutoDropColumns {
		return c.rebuildDroppingColumns(ctx, tx, dropped)
	}
	return nil
}

// logRenameHints never drops or renames anything itself; it only logs a
// best-effort "did you rename X to Y?" hint when a dropped column's name
// is Levenshtein-close to an added one (spec §4.I step 5 forbids silent
// destructive migration).
func (c *Collection[T]) logRenameHints(dropped, added []string) {
	for _, d := range dropped {
		for _, a := range added {
			threshold := len(d) / 3
			if threshold < 1 {
				threshold = 1
			}
			if dist := levenshtein.ComputeDistance(d, a); dist <= threshold {
				c.Log(fmt.Sprintf("-- hint: column %q was dropped and %q was added (edit distance %d); did you mean to rename it?", d, a, dist), nil, 0)
			}
		}
	}
}

// rebuildDroppingColumns drops columns via a copy-rename rebuild, since
// older SQLite lacks ALTER TABLE DROP COLUMN (spec §4.I step 5).
func (c *Collection[T]) rebuildDroppingColumns(ctx context.Context, tx *sql.Tx, drop []string) error {
	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	existing, err := tableInfo(ctx, tx, c.table)
	if err != nil {
		return err
	}
	var keep []string
	for _, col := range existing {
		if !dropSet[col] {
			keep = append(keep, col)
		}
	}
	quotedKeep := make([]string, len(keep))
	for i, k := range keep {
		quotedKeep[i] = quoteIdent(k)
	}
	colList := strings.Join(quotedKeep, ", ")
	tmp := c.table + "_easydb_rebuild"

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tmp), colList),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quoteIdent(tmp), colList, colList, quoteIdent(c.table)),
		fmt.Sprintf("DROP TABLE %s", quoteIdent(c.table)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmp), quoteIdent(c.table)),
	}
	for _, stmt := range stmts {
		if err := c.exec(ctx, tx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type desiredIndex struct {
	name      string
	column    string
	unique    bool
	collation string
}

func (c *Collection[T]) desiredIndices() []desiredIndex {
	var out []desiredIndex
	for _, name := range c.columns {
		cfg := c.fields[name]
		switch cfg.Index {
		case typemeta.IndexUnique:
			out = append(out, desiredIndex{
				name:      fmt.Sprintf("%s-%s-unique", c.table, name),
				column:    name,
				unique:    true,
				collation: cfg.Collation,
			})
		case typemeta.IndexRegular:
			out = append(out, desiredIndex{
				name:      fmt.Sprintf("%s-%s-%s", c.table, name, cfg.Collation),
				column:    name,
				unique:    false,
				collation: cfg.Collation,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func existingIndices(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_%'", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// reconcileIndices keeps indices that match exactly, drops obsolete ones,
// and creates missing ones (spec §4.I step 6). Drops and creates within
// each half fan out across goroutines via errgroup, since *sql.Tx is safe
// for concurrent use and the statements touch disjoint index names.
func (c *Collection[T]) reconcileIndices(ctx context.Context, tx *sql.Tx) error {
	existing, err := existingIndices(ctx, tx, c.table)
	if err != nil {
		return err
	}
	desired := c.desiredIndices()
	desiredByName := make(map[string]bool, len(desired))
	for _, d := range desired {
		desiredByName[d.name] = true
	}

	drop, dropCtx := errgroup.WithContext(ctx)
	for name := range existing {
		if desiredByName[name] {
			continue
		}
		name := name
		drop.Go(func() error {
			stmt := fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(name))
			return c.exec(dropCtx, tx, stmt)
		})
	}
	if err := drop.Wait(); err != nil {
		return err
	}

	create, createCtx := errgroup.WithContext(ctx)
	for _, d := range desired {
		if existing[d.name] {
			continue
		}
		d := d
		create.Go(func() error {
			uniqueKeyword := ""
			if d.unique {
				uniqueKeyword = "UNIQUE "
			}
			stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s COLLATE %s)",
				uniqueKeyword, quoteIdent(d.name), quoteIdent(c.table), quoteIdent(d.column), quoteIdent(d.collation))
			return c.exec(createCtx, tx, stmt)
		})
	}
	return create.Wait()
}

func (c *Collection[T]) exec(ctx context.Context, tx *sql.Tx, stmt string) error {
	_, err := tx.ExecContext(ctx, stmt)
	c.Log(stmt, nil, 0)
	if err != nil {
		return apperror.TranslateSQLiteError(err, stmt)
	}
	return nil
}
