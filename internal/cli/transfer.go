package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
)

func (a *app) newDumpCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "dump <table> <file> [filter...]",
		Short: "Write the records of a table to a JSONL file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				l, err := f.build(db, args[0], args[2:])
				if err != nil {
					return err
				}
				n, err := simpledb.DumpJSONL(ctx, l, args[1])
				if err != nil {
					return err
				}
				a.log.Info().Str("table", args[0]).Str("file", args[1]).Int("records", n).Msg("dumped")
				return report(cmd, a.jsonMode, "dumped", n, args[0], args[1])
			})
		},
	}
	cmd.Flags().StringArrayVar(&f.where, "where", nil, "SQL condition, repeatable (ANDed)")
	cmd.Flags().StringSliceVar(&f.order, "order", nil, "ORDER BY expressions")
	return cmd
}

func (a *app) newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <table> <file>",
		Short: "Insert the records of a JSONL file into a table",
		Long: "Load inserts one record per JSON line. Blank and malformed lines are\n" +
			"skipped. Ids present in the file are kept.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				n, err := simpledb.LoadJSONL(ctx, db, args[0], args[1])
				if err != nil {
					return err
				}
				a.log.Info().Str("table", args[0]).Str("file", args[1]).Int("records", n).Msg("loaded")
				return report(cmd, a.jsonMode, "loaded", n, args[0], args[1])
			})
		},
	}
}

func report(cmd *cobra.Command, jsonMode bool, verb string, n int, table, file string) error {
	if jsonMode {
		return writeJSON(cmd.OutOrStdout(), map[string]any{verb: n, "table": table, "file": file})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %d records (%s, %s)\n", verb, n, table, file)
	return err
}
