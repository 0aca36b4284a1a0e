// Package main contains the cli implementation of easydbctl. It uses the
// cobra package for cli tool implementation.
//
// easydbctl is an inspection tool, not a query surface: it lists the
// tables an easydb database already has, or one table's columns and
// indices, for operators
// debugging a deployed database file. It never filters or mutates rows.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/easydb"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "easydbctl",
		Short: "Inspect an easydb database file",
	}

	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "inspect <db> [table]",
		Short: "List tables in a database, or one table's columns and indices",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := easydb.Options{DisableAutoMigrate: true}
			if configPath != "" {
				loaded, err := easydb.LoadOptionsYAML(configPath)
				if err != nil {
					return err
				}
				loaded.DisableAutoMigrate = true
				opts = loaded
			}

			table := ""
			if len(args) == 2 {
				table = args[1]
			}
			return runInspect(args[0], table, opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Options YAML file (see easydb.LoadOptionsYAML)")
	return cmd
}

func runInspect(location, table string, opts easydb.Options) error {
	ctx := context.Background()
	db, err := easydb.Open(ctx, location, opts)
	if err != nil {
		return fmt.Errorf("opening %s: %w", location, err)
	}
	defer db.Close()

	if table != "" {
		return printTable(ctx, db, table)
	}
	return printDatabase(ctx, db)
}

func printDatabase(ctx context.Context, db *easydb.Database) error {
	rows, err := db.Pool().DB().QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(tables) == 0 {
		fmt.Println("no tables")
		return nil
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func printTable(ctx context.Context, db *easydb.Database, table string) error {
	cols, err := db.Pool().DB().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer cols.Close()

	fmt.Printf("columns:\n")
	for cols.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt any
		if err := cols.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return err
		}
		fmt.Printf("  %-20s %s\n", name, ctype)
	}
	if err := cols.Err(); err != nil {
		return err
	}

	idx, err := db.Pool().DB().QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name", table)
	if err != nil {
		return fmt.Errorf("reading indices of %s: %w", table, err)
	}
	defer idx.Close()

	fmt.Printf("indices:\n")
	for idx.Next() {
		var name string
		if err := idx.Scan(&name); err != nil {
			return err
		}
		fmt.Printf("  %s\n", name)
	}
	return idx.Err()
}

func quoteIdent(s string) string {
	return "`" + s + "`"
}
