package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Rewind restarts iteration. The query runs again on the next Valid call.
func (l *List) Rewind() {
	l.release()
	l.iterErr = nil
}

// Valid reports whether the cursor holds a record. It runs the query when
// the list has not run yet or changed since, and otherwise fetches the next
// row once per position. Execution failures end iteration and are reported
// by Err.
func (l *List) Valid(ctx context.Context) bool {
	if l.state == unexecuted || l.dirty {
		if err := l.execute(ctx); err != nil {
			return false
		}
	}
	if l.fetched {
		return l.current != nil
	}
	if l.state == exhausted {
		return false
	}

	l.fetched = true
	item, ok, err := l.next(ctx, l.rows, l.columns)
	if err != nil {
		l.iterErr = err
	}
	if !ok {
		l.finish()
		return false
	}
	l.current = item
	return true
}

// Current returns the record at the cursor, or nil before Valid.
func (l *List) Current() *Item { return l.current }

// Index returns the cursor position.
func (l *List) Index() int { return l.pos }

// Advance moves the cursor to the next position.
func (l *List) Advance() {
	l.pos++
	l.fetched = false
	l.current = nil
}

// Close releases the open result set, if any.
func (l *List) Close() error {
	l.release()
	return nil
}

func (l *List) execute(ctx context.Context) error {
	l.release()
	l.iterErr = nil
	if l.buildErr != nil {
		l.state = exhausted
		return l.buildErr
	}

	rows, err := l.sel.Query(ctx, l.db)
	if err != nil {
		l.state = exhausted
		l.iterErr = err
		return err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		l.state = exhausted
		l.iterErr = fmt.Errorf("%w: %w", types.ErrExecution, err)
		return l.iterErr
	}
	l.rows, l.columns = rows, cols
	l.state = executing
	l.dirty = false
	return nil
}

// finish closes the result set and marks the cursor exhausted.
func (l *List) finish() {
	if l.rows != nil {
		l.rows.Close()
		l.rows = nil
	}
	l.state = exhausted
	l.current = nil
}

// release closes the result set and returns the cursor to its unexecuted
// state.
func (l *List) release() {
	if l.rows != nil {
		l.rows.Close()
		l.rows = nil
	}
	l.state = unexecuted
	l.columns = nil
	l.current = nil
	l.fetched = false
	l.pos = 0
}

// next reads one row from rows and builds its record.
func (l *List) next(ctx context.Context, rows *sql.Rows, cols []string) (*Item, bool, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("%w: %w", types.ErrExecution, err)
		}
		return nil, false, nil
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, false, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	row := make(types.Row, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	item, err := newItem(ctx, l.db, l.table, row)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// At returns the record at offset in the current query. It runs a one-row
// copy of the query, so the list's limit, cursor and cached count are left
// untouched. An offset out of range reports false with no error.
func (l *List) At(ctx context.Context, offset int) (*Item, bool, error) {
	if l.buildErr != nil {
		return nil, false, l.buildErr
	}
	if offset < 0 {
		return nil, false, nil
	}
	sel := l.sel.Clone().Limit(1, uint64(offset))
	rows, err := sel.Query(ctx, l.db)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	return l.next(ctx, rows, cols)
}

// Exists reports whether a record exists at offset.
func (l *List) Exists(ctx context.Context, offset int) (bool, error) {
	_, ok, err := l.At(ctx, offset)
	return ok, err
}

// First returns the first record. The list is left without any limit
// afterwards, whatever limit it had before.
func (l *List) First(ctx context.Context) (*Item, bool, error) {
	l.Limit(1, 0)
	item, ok, err := l.At(ctx, 0)
	l.Reset(types.PartLimitCount, types.PartLimitOffset)
	return item, ok, err
}

// Last returns the final record of the current query.
func (l *List) Last(ctx context.Context) (*Item, bool, error) {
	n, err := l.Count(ctx)
	if err != nil || n == 0 {
		return nil, false, err
	}
	return l.At(ctx, n-1)
}

// ID narrows the list to the record whose key equals value and returns it.
// key defaults to the id column. A nil or empty string value returns nothing
// without a query; zero is a valid key.
func (l *List) ID(ctx context.Context, value any, key ...string) (*Item, bool, error) {
	if value == nil || value == "" {
		return nil, false, nil
	}
	field := IDField
	if len(key) > 0 && key[0] != "" {
		field = key[0]
	}
	l.Where(query.QuoteIdentifier(l.TableOrAlias()+"."+field)+" = ?", value)
	return l.First(ctx)
}

// All returns an iterator over the records from the start of the query.
// Check Err after the loop.
func (l *List) All(ctx context.Context) iter.Seq2[int, *Item] {
	return func(yield func(int, *Item) bool) {
		defer l.release()
		for l.Rewind(); l.Valid(ctx); l.Advance() {
			if !yield(l.Index(), l.Current()) {
				return
			}
		}
	}
}

// Each calls fn for every record and stops at the first error.
func (l *List) Each(ctx context.Context, fn func(*Item) error) error {
	for _, item := range l.All(ctx) {
		if err := fn(item); err != nil {
			return err
		}
	}
	return l.Err()
}

// ToArray returns every record.
func (l *List) ToArray(ctx context.Context) ([]*Item, error) {
	var out []*Item
	err := l.Each(ctx, func(item *Item) error {
		out = append(out, item)
		return nil
	})
	return out, err
}

// IDs returns the id of every record.
func (l *List) IDs(ctx context.Context) ([]any, error) {
	var out []any
	err := l.Each(ctx, func(item *Item) error {
		out = append(out, item.ID())
		return nil
	})
	return out, err
}

// KeyValue maps the display form of keyField to valueField for every
// record. Later records win on duplicate keys.
func (l *List) KeyValue(ctx context.Context, keyField, valueField string) (map[string]any, error) {
	out := map[string]any{}
	err := l.Each(ctx, func(item *Item) error {
		out[display(item.Get(keyField))] = item.Get(valueField)
		return nil
	})
	return out, err
}
