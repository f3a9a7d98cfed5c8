package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

var readPrefixes = []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES"}

func isRead(stmt string) bool {
	up := strings.ToUpper(strings.TrimSpace(stmt))
	for _, p := range readPrefixes {
		if strings.HasPrefix(up, p) {
			return true
		}
	}
	return false
}

func (a *app) newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql> [arg...]",
		Short: "Run a SQL statement with optional bound arguments",
		Long: `Exec runs one statement. Arguments fill ? placeholders in order.
Queries print their rows; other statements print the affected row count.

Examples:
  simpledb exec "CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT)"
  simpledb exec "SELECT * FROM products WHERE name = ?" Pen`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				stmt := args[0]
				params := toAny(args[1:])
				if isRead(stmt) {
					return a.query(ctx, cmd, db, stmt, params)
				}
				res, err := db.Exec(ctx, stmt, params...)
				if err != nil {
					return err
				}
				n, err := res.RowsAffected()
				if err != nil {
					return fmt.Errorf("%w: rows affected: %w", types.ErrExecution, err)
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]int64{"rows_affected": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
				return nil
			})
		},
	}
}

func (a *app) query(ctx context.Context, cmd *cobra.Command, db *simpledb.DB, stmt string, params []any) error {
	rows, err := db.Query(ctx, stmt, params...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	var out []types.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("%w: scan: %w", types.ErrExecution, err)
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	if a.jsonMode {
		if out == nil {
			out = []types.Row{}
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}
	if len(out) == 0 {
		cols = nil
	}
	return writeTable(cmd.OutOrStdout(), cols, out)
}
