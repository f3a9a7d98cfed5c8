package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Sequence is forward iteration over records:
//
//	for l.Rewind(); l.Valid(ctx); l.Advance() {
//		item := l.Current()
//	}
type Sequence interface {
	Rewind()
	Valid(ctx context.Context) bool
	Current() *Item
	Index() int
	Advance()
	Err() error
}

// Sizer reports the number of records a query yields.
type Sizer interface {
	Count(ctx context.Context) (int, error)
}

// Indexer looks records up by position. Lookups are read-only: records are
// never stored into or removed from a list by position.
type Indexer interface {
	At(ctx context.Context, offset int) (*Item, bool, error)
	Exists(ctx context.Context, offset int) (bool, error)
}

var (
	_ Sequence = (*List)(nil)
	_ Sizer    = (*List)(nil)
	_ Indexer  = (*List)(nil)
)

type cursorState int

const (
	unexecuted cursorState = iota
	executing
	exhausted
)

// List is a deferred query over one table. Builder methods accumulate
// clauses and return the list for chaining; nothing runs until a terminal
// operation (iteration, Count, At, First, Last, Paginate). A malformed
// argument to a builder method is reported by Err and by the next terminal
// operation.
//
// A List is not safe for concurrent use. Clones are independent.
type List struct {
	db     *DB
	table  string
	alias  string
	fields []string
	sel    *query.Select
	ledger query.Ledger

	joined  bool
	limited bool
	grouped bool

	dirty    bool
	count    int
	hasCount bool
	buildErr error

	state   cursorState
	rows    *sql.Rows
	columns []string
	current *Item
	fetched bool
	pos     int
	iterErr error
}

func newList(db *DB, table string) *List {
	return &List{
		db:     db,
		table:  table,
		fields: []string{query.AllColumns},
		sel:    query.NewSelect(table),
		dirty:  true,
	}
}

// Table returns the table name.
func (l *List) Table() string { return l.table }

// TableOrAlias returns the alias when one is set, otherwise the table name.
func (l *List) TableOrAlias() string {
	if l.alias != "" {
		return l.alias
	}
	return l.table
}

// IsJoined reports whether a join is active.
func (l *List) IsJoined() bool { return l.joined }

// IsLimited reports whether a limit or offset is active.
func (l *List) IsLimited() bool { return l.limited }

// IsGrouped reports whether a GROUP BY is active.
func (l *List) IsGrouped() bool { return l.grouped }

// Err returns the first builder error, or the error that ended the last
// iteration.
func (l *List) Err() error {
	if l.buildErr != nil {
		return l.buildErr
	}
	return l.iterErr
}

// mutated records that the query changed.
func (l *List) mutated() *List {
	l.dirty = true
	l.hasCount = false
	l.count = 0
	return l
}

func (l *List) fail(err error) *List {
	if l.buildErr == nil {
		l.buildErr = err
	}
	return l
}

// Where adds a condition joined with AND. args follow query.Bind.
func (l *List) Where(cond string, args ...any) *List {
	bound, vals, err := query.Bind(cond, args...)
	if err != nil {
		return l.fail(err)
	}
	l.sel.Where(bound, vals...)
	return l.mutated()
}

// OrWhere adds a condition joined with OR.
func (l *List) OrWhere(cond string, args ...any) *List {
	bound, vals, err := query.Bind(cond, args...)
	if err != nil {
		return l.fail(err)
	}
	l.sel.OrWhere(bound, vals...)
	return l.mutated()
}

// Having adds a HAVING condition joined with AND.
func (l *List) Having(cond string, args ...any) *List {
	bound, vals, err := query.Bind(cond, args...)
	if err != nil {
		return l.fail(err)
	}
	l.sel.Having(bound, vals...)
	return l.mutated()
}

// OrHaving adds a HAVING condition joined with OR.
func (l *List) OrHaving(cond string, args ...any) *List {
	bound, vals, err := query.Bind(cond, args...)
	if err != nil {
		return l.fail(err)
	}
	l.sel.OrHaving(bound, vals...)
	return l.mutated()
}

// WhereIDIn keeps records whose id is one of ids. An empty set leaves the
// query unchanged.
func (l *List) WhereIDIn(ids ...any) *List {
	return l.WhereFieldIn(IDField, ids...)
}

// WhereIDNotIn drops records whose id is one of ids.
func (l *List) WhereIDNotIn(ids ...any) *List {
	return l.WhereFieldNotIn(IDField, ids...)
}

// WhereFieldIn keeps records whose field is one of values. A single slice
// argument is expanded. An empty set leaves the query unchanged.
func (l *List) WhereFieldIn(field string, values ...any) *List {
	return l.whereIn(field, values, false)
}

// WhereFieldNotIn drops records whose field is one of values.
func (l *List) WhereFieldNotIn(field string, values ...any) *List {
	return l.whereIn(field, values, true)
}

func (l *List) whereIn(field string, values []any, negate bool) *List {
	values = query.Values(values...)
	if len(values) == 0 {
		return l
	}
	col := query.QuoteIdentifier(l.TableOrAlias() + "." + field)
	var pred sq.Sqlizer = sq.Eq{col: values}
	if negate {
		pred = sq.NotEq{col: values}
	}
	if err := l.sel.WhereSqlizer(pred); err != nil {
		return l.fail(err)
	}
	return l.mutated()
}

// Order appends ORDER BY expressions.
func (l *List) Order(exprs ...string) *List {
	l.sel.Order(exprs...)
	return l.mutated()
}

// Group appends GROUP BY expressions.
func (l *List) Group(exprs ...string) *List {
	l.sel.Group(exprs...)
	l.grouped = true
	return l.mutated()
}

// Distinct toggles SELECT DISTINCT.
func (l *List) Distinct(on bool) *List {
	l.sel.Distinct(on)
	return l.mutated()
}

// Limit sets the row limit and offset. Zero for both removes the limit.
func (l *List) Limit(count, offset int) *List {
	if count < 0 || offset < 0 {
		return l.fail(fmt.Errorf("%w: negative limit %d offset %d", types.ErrInvalidArgument, count, offset))
	}
	l.sel.Limit(uint64(count), uint64(offset))
	l.limited = count > 0 || offset > 0
	return l.mutated()
}

// LimitPage limits the list to one 1-based page of perPage records. Pages
// below 1 are treated as page 1.
func (l *List) LimitPage(page, perPage int) *List {
	if perPage <= 0 {
		return l.fail(fmt.Errorf("%w: page size %d", types.ErrInvalidArgument, perPage))
	}
	if page < 1 {
		page = 1
	}
	l.sel.LimitPage(uint64(page), uint64(perPage))
	l.limited = true
	return l.mutated()
}

// Fields adds columns of the table to the projection.
func (l *List) Fields(cols ...string) *List {
	l.fields = append(l.fields, cols...)
	l.sel.Reset(types.PartColumns).Columns(l.fields...)
	if err := l.rejoinColumns(); err != nil {
		return l.fail(err)
	}
	return l.mutated()
}

// rejoinColumns restores the projected columns of ledger joins after the
// column set was cleared.
func (l *List) rejoinColumns() error {
	if l.sel.JoinCount() == 0 {
		return nil
	}
	l.sel.Reset(types.PartFrom)
	l.sel.From(l.table, l.alias)
	return l.ledger.Replay(l.sel)
}

// Join adds a plain join. target is "table", "table alias" or
// "table AS alias"; columns are taken from the joined table.
func (l *List) Join(target, cond string, columns ...string) *List {
	return l.join(query.JoinEntry{Kind: types.JoinPlain, Target: target, Condition: cond, Columns: columns})
}

// JoinInner adds an INNER JOIN.
func (l *List) JoinInner(target, cond string, columns ...string) *List {
	return l.join(query.JoinEntry{Kind: types.JoinInner, Target: target, Condition: cond, Columns: columns})
}

// JoinLeft adds a LEFT JOIN.
func (l *List) JoinLeft(target, cond string, columns ...string) *List {
	return l.join(query.JoinEntry{Kind: types.JoinLeft, Target: target, Condition: cond, Columns: columns})
}

// JoinEntry adds a join described by e, including a schema for attached
// databases.
func (l *List) JoinEntry(e query.JoinEntry) *List {
	return l.join(e)
}

func (l *List) join(e query.JoinEntry) *List {
	if err := e.Apply(l.sel); err != nil {
		return l.fail(err)
	}
	l.ledger.Record(e)
	l.joined = true
	return l.mutated()
}

// Alias renames the table in generated SQL. The FROM clause and projection
// are rebuilt and every recorded join is applied again in order; filters,
// ordering and grouping are kept.
func (l *List) Alias(alias string) *List {
	l.alias = alias
	l.sel.Reset(types.PartFrom, types.PartColumns)
	l.sel.From(l.table, alias, l.fields...)
	if err := l.ledger.Replay(l.sel); err != nil {
		return l.fail(err)
	}
	return l.mutated()
}

// Reset clears the named clause categories, or all of them. Resetting
// PartColumns clears joined columns too. Resetting PartFrom drops the joins,
// which later aliasing no longer replays, and rebuilds FROM from the table
// and alias so the list never loses its source table.
func (l *List) Reset(parts ...types.Part) *List {
	all := len(parts) == 0
	if all {
		parts = types.Parts
	}
	l.sel.Reset(parts...)

	for _, p := range parts {
		switch p {
		case types.PartFrom:
			l.joined = false
			l.ledger.Seal()
		case types.PartLimitCount, types.PartLimitOffset:
			l.limited = false
		case types.PartGroup:
			l.grouped = false
		case types.PartColumns:
			l.fields = nil
		}
	}
	if all {
		l.fields = []string{query.AllColumns}
	}

	if slices.Contains(parts, types.PartFrom) {
		l.sel.Reset(types.PartColumns)
		l.sel.From(l.table, l.alias, l.fields...)
	}
	return l.mutated()
}

// Part returns a copy of one clause category of the pending query.
func (l *List) Part(p types.Part) any {
	return l.sel.Part(p)
}

// Clone returns an independent copy with the same pending query and join
// history and a fresh cursor.
func (l *List) Clone() *List {
	return &List{
		db:       l.db,
		table:    l.table,
		alias:    l.alias,
		fields:   slices.Clone(l.fields),
		sel:      l.sel.Clone(),
		ledger:   l.ledger.Clone(),
		joined:   l.joined,
		limited:  l.limited,
		grouped:  l.grouped,
		dirty:    true,
		count:    l.count,
		hasCount: l.hasCount,
		buildErr: l.buildErr,
	}
}

// Query returns the rendered SQL, or the render error text.
func (l *List) Query() string {
	return l.sel.String()
}

// SQL returns the rendered SQL and its arguments.
func (l *List) SQL() (string, []any, error) {
	if l.buildErr != nil {
		return "", nil, l.buildErr
	}
	return l.sel.ToSQL()
}

// String renders a debugging dump: the table, the query and up to five
// records. It runs the query.
func (l *List) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "List(%s)\nQuery: %s\n", l.table, l.Query())

	c := l.Clone()
	defer c.Close()
	ctx := context.Background()
	n := 0
	for c.Rewind(); c.Valid(ctx) && n < 5; c.Advance() {
		b.WriteString(c.Current().String())
		b.WriteString("\n")
		n++
	}
	if err := c.Err(); err != nil {
		fmt.Fprintf(&b, "Error: %v with query: %s\n", err, l.Query())
	}
	return b.String()
}
