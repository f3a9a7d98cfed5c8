package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// listFlags are the query-shaping flags shared by list and count.
type listFlags struct {
	where   []string
	order   []string
	group   []string
	alias   string
	fields  []string
	limit   int
	offset  int
	page    int
	perPage int
}

func (f *listFlags) register(cmd *cobra.Command, paging bool) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.where, "where", nil, "SQL condition, repeatable (ANDed)")
	fs.StringSliceVar(&f.group, "group", nil, "GROUP BY expressions")
	fs.StringVar(&f.alias, "alias", "", "correlation name for the table")
	if !paging {
		return
	}
	fs.StringSliceVar(&f.order, "order", nil, "ORDER BY expressions, e.g. \"price DESC\"")
	fs.StringSliceVar(&f.fields, "fields", nil, "columns to select (default: all)")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of rows (0: no limit)")
	fs.IntVar(&f.offset, "offset", 0, "rows to skip")
	fs.IntVar(&f.page, "page", 0, "page number, used with --per-page")
	fs.IntVar(&f.perPage, "per-page", 20, "rows per page")
}

// parseFilters turns key=value arguments into values keyed by column. A
// value that parses as JSON is used as such, otherwise as a string.
func parseFilters(args []string) (map[string]any, []string, error) {
	filters := map[string]any{}
	var keys []string
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, nil, fmt.Errorf("%w: filter %q (expected key=value)", types.ErrInvalidArgument, arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		if _, seen := filters[key]; !seen {
			keys = append(keys, key)
		}
		filters[key] = v
	}
	return filters, keys, nil
}

// build opens table and applies the flags and filters to it.
func (f *listFlags) build(db *simpledb.DB, table string, filterArgs []string) (*simpledb.List, error) {
	l, err := db.Table(table)
	if err != nil {
		return nil, err
	}
	filters, keys, err := parseFilters(filterArgs)
	if err != nil {
		return nil, err
	}

	type step struct {
		op   string
		args []any
	}
	var steps []step
	if f.alias != "" {
		steps = append(steps, step{"alias", []any{f.alias}})
	}
	if len(f.fields) > 0 {
		steps = append(steps,
			step{"reset", []any{string(types.PartColumns)}},
			step{"fields", toAny(f.fields)})
	}
	for _, cond := range f.where {
		steps = append(steps, step{"where", []any{cond}})
	}
	for _, k := range keys {
		col := db.QuoteIdentifier(l.TableOrAlias() + "." + k)
		if filters[k] == nil {
			steps = append(steps, step{"where", []any{col + " IS NULL"}})
			continue
		}
		steps = append(steps, step{"where", []any{col + " = ?", filters[k]}})
	}
	if len(f.group) > 0 {
		steps = append(steps, step{"group", toAny(f.group)})
	}
	if len(f.order) > 0 {
		steps = append(steps, step{"order", toAny(f.order)})
	}
	if f.limit != 0 || f.offset != 0 {
		steps = append(steps, step{"limit", []any{f.limit, f.offset}})
	}

	for _, s := range steps {
		if err := l.Apply(s.op, s.args...); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (a *app) newListCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list <table> [filter...]",
		Short: "List records with optional filters",
		Long: `List queries records from a table.

Filters are key=value pairs ANDed together; values that parse as JSON are
compared as such. --where adds raw SQL conditions.

Examples:
  simpledb list products
  simpledb list products on_sale=1 --order "price DESC"
  simpledb list products --where "price > 10" --page 2 --per-page 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				l, err := f.build(db, args[0], args[1:])
				if err != nil {
					return err
				}
				if f.page > 0 {
					pages, err := l.Paginate(ctx, f.page, f.perPage)
					if err != nil {
						return err
					}
					a.log.Info().Int("page", f.page).Int("pages", pages).Msg("paginated")
				}
				a.log.Debug().Str("sql", l.Query()).Msg("list")
				items, err := l.ToArray(ctx)
				if err != nil {
					return err
				}
				return writeItems(cmd.OutOrStdout(), items, a.jsonMode)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) newCountCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "count <table> [filter...]",
		Short: "Count records with optional filters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				l, err := f.build(db, args[0], args[1:])
				if err != nil {
					return err
				}
				n, err := l.Count(ctx)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]int{"count": n})
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show one record by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *simpledb.DB) error {
				l, err := db.Table(args[0])
				if err != nil {
					return err
				}
				var keys []string
				if key != "" {
					keys = append(keys, key)
				}
				item, ok, err := l.ID(ctx, args[1], keys...)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s %s", types.ErrNotFound, args[0], args[1])
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), item.Info())
				}
				return writeTable(cmd.OutOrStdout(), columnsOf([]*simpledb.Item{item}), []types.Row{item.Info()})
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "column to match instead of id")
	return cmd
}
