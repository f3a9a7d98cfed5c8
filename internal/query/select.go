// Package query implements the statement builder used by simpledb lists.
// A Select accumulates clause fragments that can be reset and inspected one
// category at a time, and renders them through squirrel. The package also
// holds the join ledger and the placeholder binding helpers.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// CountAlias is the correlation name of the derived table wrapped by Count.
const CountAlias = "t1"

// AllColumns is the projected column that selects every column of a table.
const AllColumns = "*"

var (
	plainColumn   = regexp.MustCompile(`^\w+$`)
	aliasedColumn = regexp.MustCompile(`^(\w+)\s+(?i:as)\s+(\w+)$`)
)

// Runner executes rendered statements. *sql.DB, *sql.Conn and *sql.Tx
// satisfy it.
type Runner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// From describes the FROM target of a Select.
type From struct {
	Table string
	Alias string
}

// Correlation returns the name columns of the FROM target are qualified
// with. A schema prefix on the table is dropped.
func (f From) Correlation() string {
	if f.Alias != "" {
		return f.Alias
	}
	return unqualified(f.Table)
}

func unqualified(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}

// Condition is one WHERE or HAVING fragment with its bound arguments.
type Condition struct {
	Or   bool
	SQL  string
	Args []any
}

type join struct {
	kind    types.JoinKind
	table   string
	alias   string
	schema  string
	cond    string
	columns []string
}

func (j join) correlation() string {
	if j.alias != "" {
		return j.alias
	}
	return unqualified(j.table)
}

func (j join) clause() string {
	var b strings.Builder
	b.WriteString(j.kind.SQL())
	b.WriteString(" ")
	if j.schema != "" {
		b.WriteString(QuoteIdentifier(j.schema))
		b.WriteString(".")
	}
	b.WriteString(QuoteIdentifier(j.table))
	if j.alias != "" {
		b.WriteString(" AS ")
		b.WriteString(QuoteIdentifier(j.alias))
	}
	if j.cond != "" {
		b.WriteString(" ON ")
		b.WriteString(j.cond)
	}
	return b.String()
}

// Select is a mutable SELECT statement description. The zero value is not
// usable; create one with NewSelect.
type Select struct {
	from     From
	distinct bool
	columns  []string
	joins    []join
	where    []Condition
	having   []Condition
	group    []string
	order    []string

	limitCount  uint64
	limitOffset uint64
	hasCount    bool
	hasOffset   bool
}

// NewSelect returns a Select over table projecting all of its columns.
func NewSelect(table string) *Select {
	s := &Select{}
	s.From(table, "", AllColumns)
	return s
}

// From sets the FROM target and appends columns of that target to the
// projection.
func (s *Select) From(table, alias string, columns ...string) *Select {
	s.from = From{Table: table, Alias: alias}
	s.columns = append(s.columns, columns...)
	return s
}

// Columns appends columns of the FROM target to the projection.
func (s *Select) Columns(columns ...string) *Select {
	s.columns = append(s.columns, columns...)
	return s
}

// Distinct toggles SELECT DISTINCT.
func (s *Select) Distinct(on bool) *Select {
	s.distinct = on
	return s
}

// Where appends a condition joined with AND.
func (s *Select) Where(cond string, args ...any) *Select {
	s.where = append(s.where, Condition{SQL: cond, Args: slices.Clone(args)})
	return s
}

// OrWhere appends a condition joined with OR.
func (s *Select) OrWhere(cond string, args ...any) *Select {
	s.where = append(s.where, Condition{Or: true, SQL: cond, Args: slices.Clone(args)})
	return s
}

// WhereSqlizer renders pred and appends it joined with AND.
func (s *Select) WhereSqlizer(pred sq.Sqlizer) error {
	cond, args, err := pred.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	s.Where(cond, args...)
	return nil
}

// Having appends a HAVING condition joined with AND.
func (s *Select) Having(cond string, args ...any) *Select {
	s.having = append(s.having, Condition{SQL: cond, Args: slices.Clone(args)})
	return s
}

// OrHaving appends a HAVING condition joined with OR.
func (s *Select) OrHaving(cond string, args ...any) *Select {
	s.having = append(s.having, Condition{Or: true, SQL: cond, Args: slices.Clone(args)})
	return s
}

// Group appends GROUP BY expressions.
func (s *Select) Group(exprs ...string) *Select {
	s.group = append(s.group, exprs...)
	return s
}

// Order appends ORDER BY expressions.
func (s *Select) Order(exprs ...string) *Select {
	s.order = append(s.order, exprs...)
	return s
}

// Limit sets LIMIT count and OFFSET offset. A zero count with a zero offset
// clears both, matching an unlimited statement.
func (s *Select) Limit(count, offset uint64) *Select {
	s.limitCount, s.hasCount = count, count > 0
	s.limitOffset, s.hasOffset = offset, offset > 0
	return s
}

// LimitPage sets the limit for a 1-based page of perPage rows. Pages below 1
// are treated as page 1.
func (s *Select) LimitPage(page, perPage uint64) *Select {
	if page < 1 {
		page = 1
	}
	return s.Limit(perPage, (page-1)*perPage)
}

// Join adds a join against target. The target is either "table",
// "table alias" or "table AS alias". An empty or unparsable target is
// rejected with types.ErrInvalidArgument and leaves the statement unchanged.
func (s *Select) Join(kind types.JoinKind, target, cond string, columns []string, schema string) error {
	table, alias, err := ParseTarget(target)
	if err != nil {
		return err
	}
	switch kind {
	case types.JoinPlain, types.JoinInner, types.JoinLeft:
	default:
		return fmt.Errorf("%w: join kind %q", types.ErrUnsupportedOperation, kind)
	}
	s.joins = append(s.joins, join{
		kind:    kind,
		table:   table,
		alias:   alias,
		schema:  schema,
		cond:    cond,
		columns: slices.Clone(columns),
	})
	return nil
}

// ParseTarget splits a join target into table and alias.
func ParseTarget(target string) (table, alias string, err error) {
	fields := strings.Fields(target)
	switch {
	case len(fields) == 1:
		return fields[0], "", nil
	case len(fields) == 2:
		return fields[0], fields[1], nil
	case len(fields) == 3 && strings.EqualFold(fields[1], "as"):
		return fields[0], fields[2], nil
	default:
		return "", "", fmt.Errorf("%w: malformed join target %q", types.ErrInvalidArgument, target)
	}
}

// Reset clears the named clause categories, or every category when none is
// given. Resetting PartFrom also drops every join.
func (s *Select) Reset(parts ...types.Part) *Select {
	if len(parts) == 0 {
		parts = types.Parts
	}
	for _, p := range parts {
		switch p {
		case types.PartDistinct:
			s.distinct = false
		case types.PartColumns:
			s.columns = nil
			for i := range s.joins {
				s.joins[i].columns = nil
			}
		case types.PartFrom:
			s.from = From{}
			s.joins = nil
		case types.PartWhere:
			s.where = nil
		case types.PartGroup:
			s.group = nil
		case types.PartHaving:
			s.having = nil
		case types.PartOrder:
			s.order = nil
		case types.PartLimitCount:
			s.limitCount, s.hasCount = 0, false
		case types.PartLimitOffset:
			s.limitOffset, s.hasOffset = 0, false
		}
	}
	return s
}

// Part returns a copy of one clause category:
//
//	PartDistinct                   bool
//	PartColumns                    []string
//	PartFrom                       From
//	PartWhere, PartHaving          []Condition
//	PartGroup, PartOrder           []string
//	PartLimitCount, PartLimitOffset uint64 (0 when unset)
func (s *Select) Part(p types.Part) any {
	switch p {
	case types.PartDistinct:
		return s.distinct
	case types.PartColumns:
		return slices.Clone(s.columns)
	case types.PartFrom:
		return s.from
	case types.PartWhere:
		return cloneConditions(s.where)
	case types.PartHaving:
		return cloneConditions(s.having)
	case types.PartGroup:
		return slices.Clone(s.group)
	case types.PartOrder:
		return slices.Clone(s.order)
	case types.PartLimitCount:
		return s.limitCount
	case types.PartLimitOffset:
		return s.limitOffset
	default:
		return nil
	}
}

// JoinCount returns the number of live joins.
func (s *Select) JoinCount() int {
	return len(s.joins)
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Select) Clone() *Select {
	c := *s
	c.columns = slices.Clone(s.columns)
	c.joins = make([]join, len(s.joins))
	for i, j := range s.joins {
		j.columns = slices.Clone(j.columns)
		c.joins[i] = j
	}
	c.where = cloneConditions(s.where)
	c.having = cloneConditions(s.having)
	c.group = slices.Clone(s.group)
	c.order = slices.Clone(s.order)
	return &c
}

// Builder converts the statement into a squirrel SelectBuilder.
func (s *Select) Builder() sq.SelectBuilder {
	b := sq.Select(s.projection()...).PlaceholderFormat(sq.Question)
	if s.distinct {
		b = b.Distinct()
	}
	if s.from.Table != "" {
		b = b.From(s.fromClause())
	}
	for _, j := range s.joins {
		b = b.JoinClause(j.clause())
	}
	if cond, args := joinConditions(s.where); cond != "" {
		b = b.Where(cond, args...)
	}
	if len(s.group) > 0 {
		b = b.GroupBy(s.group...)
	}
	if cond, args := joinConditions(s.having); cond != "" {
		b = b.Having(cond, args...)
	}
	if len(s.order) > 0 {
		b = b.OrderBy(s.order...)
	}
	switch {
	case s.hasCount:
		b = b.Limit(s.limitCount)
	case s.hasOffset:
		b = b.Limit(math.MaxInt64)
	}
	if s.hasOffset {
		b = b.Offset(s.limitOffset)
	}
	return b
}

// ToSQL renders the statement and its arguments.
func (s *Select) ToSQL() (string, []any, error) {
	query, args, err := s.Builder().ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: render select: %w", types.ErrInvalidArgument, err)
	}
	return query, args, nil
}

// CountSQL renders SELECT COUNT(*) over the statement wrapped as a derived
// table, leaving the projection, limit and offset of s untouched.
func (s *Select) CountSQL() (string, []any, error) {
	query, args, err := sq.Select("COUNT(*) AS row_count").
		FromSelect(s.Builder(), CountAlias).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: render count: %w", types.ErrInvalidArgument, err)
	}
	return query, args, nil
}

// Query renders the statement and executes it with r.
func (s *Select) Query(ctx context.Context, r Runner) (*sql.Rows, error) {
	query, args, err := s.ToSQL()
	if err != nil {
		return nil, err
	}
	return r.QueryContext(ctx, query, args...)
}

// String returns the rendered SQL, or the render error text.
func (s *Select) String() string {
	query, _, err := s.ToSQL()
	if err != nil {
		return err.Error()
	}
	return query
}

func (s *Select) fromClause() string {
	clause := QuoteIdentifier(s.from.Table)
	if s.from.Alias != "" {
		clause += " AS " + QuoteIdentifier(s.from.Alias)
	}
	return clause
}

func (s *Select) projection() []string {
	var cols []string
	corr := s.from.Correlation()
	for _, c := range s.columns {
		cols = append(cols, qualifyColumn(corr, c))
	}
	for _, j := range s.joins {
		for _, c := range j.columns {
			cols = append(cols, qualifyColumn(j.correlation(), c))
		}
	}
	return cols
}

// qualifyColumn prefixes plain column names with the correlation name.
// Expressions are passed through untouched.
func qualifyColumn(corr, col string) string {
	col = strings.TrimSpace(col)
	switch {
	case col == AllColumns:
		if corr == "" {
			return AllColumns
		}
		return QuoteIdentifier(corr) + "." + AllColumns
	case plainColumn.MatchString(col):
		if corr == "" {
			return QuoteIdentifier(col)
		}
		return QuoteIdentifier(corr) + "." + QuoteIdentifier(col)
	default:
		if m := aliasedColumn.FindStringSubmatch(col); m != nil {
			return qualifyColumn(corr, m[1]) + " AS " + QuoteIdentifier(m[2])
		}
		return col
	}
}

func joinConditions(conds []Condition) (string, []any) {
	var b strings.Builder
	var args []any
	for i, c := range conds {
		if i > 0 {
			if c.Or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		b.WriteString("(")
		b.WriteString(c.SQL)
		b.WriteString(")")
		args = append(args, c.Args...)
	}
	return b.String(), args
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		c.Args = slices.Clone(c.Args)
		out[i] = c
	}
	return out
}
