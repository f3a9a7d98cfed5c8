package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// columnsOf returns the table columns of items followed by any extra
// columns a join brought in, sorted.
func columnsOf(items []*simpledb.Item) []string {
	if len(items) == 0 {
		return nil
	}
	first := items[0].Info()
	cols := lo.Filter(items[0].Fields(), func(c string, _ int) bool {
		_, ok := first[c]
		return ok
	})
	var extra []string
	for _, it := range items {
		for k := range it.Info() {
			if !slices.Contains(cols, k) && !slices.Contains(extra, k) {
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	return append(cols, extra...)
}

// writeItems prints items as a JSON array or as an aligned table.
func writeItems(w io.Writer, items []*simpledb.Item, jsonMode bool) error {
	if jsonMode {
		rows := lo.Map(items, func(it *simpledb.Item, _ int) types.Row { return it.Info() })
		return writeJSON(w, rows)
	}
	return writeTable(w, columnsOf(items), lo.Map(items, func(it *simpledb.Item, _ int) types.Row { return it.Info() }))
}

// writeTable prints rows under a header of cols.
func writeTable(w io.Writer, cols []string, rows []types.Row) error {
	if len(cols) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		cells := lo.Map(cols, func(c string, _ int) string { return cell(row[c]) })
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
