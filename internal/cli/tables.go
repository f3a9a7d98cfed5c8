package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func (a *app) newTablesCmd() *cobra.Command {
	var columns bool
	cmd := &cobra.Command{
		Use:   "tables [table...]",
		Short: "List tables, or the columns of the named tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				names := args
				if len(names) == 0 {
					names = db.TableNames()
				} else {
					columns = true
				}
				if !columns {
					if a.jsonMode {
						return writeJSON(cmd.OutOrStdout(), names)
					}
					for _, n := range names {
						fmt.Fprintln(cmd.OutOrStdout(), n)
					}
					return nil
				}
				return a.writeColumns(ctx, cmd, db, names)
			})
		},
	}
	cmd.Flags().BoolVar(&columns, "columns", false, "show the columns of every table")
	return cmd
}

type columnInfo struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
	Default    any    `json:"default"`
}

func (a *app) writeColumns(ctx context.Context, cmd *cobra.Command, db *simpledb.DB, names []string) error {
	var out []columnInfo
	for _, n := range names {
		l, err := db.Table(n)
		if err != nil {
			return err
		}
		cols, err := db.TableInfo(ctx, l.Table())
		if err != nil {
			return err
		}
		for _, c := range cols {
			out = append(out, columnInfo{Table: n, Name: c.Name, Type: c.Type, NotNull: c.NotNull, PrimaryKey: c.PrimaryKey, Default: c.Default})
		}
	}
	if a.jsonMode {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	rows := make([]types.Row, len(out))
	for i, c := range out {
		rows[i] = types.Row{"table": c.Table, "column": c.Name, "type": c.Type, "not_null": c.NotNull, "pk": c.PrimaryKey, "default": c.Default}
	}
	return writeTable(cmd.OutOrStdout(), []string{"table", "column", "type", "not_null", "pk", "default"}, rows)
}
