package sqlite

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/internal/validate"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// IDField is the primary key column every record table carries.
const IDField = "id"

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ChangeMode selects how HasChanged combines several fields.
type ChangeMode int

const (
	// ChangedAny reports true when at least one field changed.
	ChangedAny ChangeMode = iota
	// ChangedAll reports true only when every field changed.
	ChangedAll
)

// Item is one record of a table. The list that produced it holds no
// reference to it.
type Item struct {
	db      *DB
	table   string
	model   Model
	columns []Column
	byName  map[string]Column

	row      types.Row
	original types.Row
	lastSave types.Row
	exists   bool

	validator *validate.Validator
}

func newItem(ctx context.Context, db *DB, table string, row types.Row) (*Item, error) {
	cols, err := db.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	it := &Item{
		db:      db,
		table:   table,
		model:   db.modelOrPlain(table),
		columns: cols,
		byName:  lo.KeyBy(cols, func(c Column) string { return c.Name }),
	}
	it.row = it.deserialize(normalizeRow(row))
	it.original = cloneRow(it.row)
	it.lastSave = cloneRow(it.row)
	it.exists = !emptyID(it.row[IDField])
	it.validator = validate.New(it)

	if h, ok := it.model.(Initializer); ok {
		h.Init(it)
	}
	return it, nil
}

// normalizeRow converts driver byte slices into strings.
func normalizeRow(row types.Row) types.Row {
	out := make(types.Row, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[k] = v
	}
	return out
}

func cloneRow(row types.Row) types.Row {
	out := maps.Clone(row)
	for k, v := range out {
		if s, ok := v.([]string); ok {
			out[k] = slices.Clone(s)
		}
	}
	return out
}

func emptyID(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	default:
		return false
	}
}

// Table returns the table the record belongs to.
func (i *Item) Table() string { return i.table }

// Model returns the model bound to the record's table.
func (i *Item) Model() Model { return i.model }

// ID returns the primary key value.
func (i *Item) ID() any { return i.row[IDField] }

// Exists reports whether the record is stored.
func (i *Item) Exists() bool { return i.exists }

// Fields returns the column names of the record's table.
func (i *Item) Fields() []string {
	return lo.Map(i.columns, func(c Column, _ int) string { return c.Name })
}

// Get returns the value of field, or nil.
func (i *Item) Get(field string) any {
	return i.row[field]
}

// Set assigns field. An empty string stored into a nullable column becomes
// NULL.
func (i *Item) Set(field string, value any) {
	if c, ok := i.byName[field]; ok && c.Nullable() && value == "" {
		value = nil
	}
	i.row[field] = value
}

// SetInfo assigns every field of info.
func (i *Item) SetInfo(info types.Row) {
	for k, v := range info {
		i.Set(k, v)
	}
}

// Info returns a copy of every field, including ones not backed by a
// column.
func (i *Item) Info() types.Row {
	return cloneRow(i.row)
}

// DBInfo returns the fields backed by table columns with array fields
// joined for storage.
func (i *Item) DBInfo() (types.Row, error) {
	info := types.Row{}
	for k, v := range i.row {
		if _, ok := i.byName[k]; ok {
			info[k] = v
		}
	}
	for _, f := range i.arrayFields() {
		if _, ok := i.byName[f]; !ok {
			return nil, fmt.Errorf("%w: array field %q is not a column of %s", types.ErrInvalidArgument, f, i.table)
		}
		if s, ok := info[f].([]string); ok {
			info[f] = strings.Join(s, ArraySeparator)
		}
	}
	return info, nil
}

func (i *Item) arrayFields() []string {
	if a, ok := i.model.(ArrayFielder); ok {
		return a.ArrayFields()
	}
	return nil
}

func (i *Item) deserialize(row types.Row) types.Row {
	for _, f := range i.arrayFields() {
		switch v := row[f].(type) {
		case string:
			if v == "" {
				row[f] = []string{}
				continue
			}
			row[f] = strings.Split(v, ArraySeparator)
		case []any:
			row[f] = lo.Map(v, func(e any, _ int) string { return display(e) })
		}
	}
	return row
}

// OriginalValue returns field as it was when the record was built.
func (i *Item) OriginalValue(field string) any {
	return i.original[field]
}

// LastSavedValue returns field as it was after the last save.
func (i *Item) LastSavedValue(field string) any {
	return i.lastSave[field]
}

// HasChanged reports whether fields differ from their values at
// construction.
func (i *Item) HasChanged(mode ChangeMode, fields ...string) bool {
	return i.changed(i.original, mode, fields)
}

// HasChangedSinceLastSave reports whether fields differ from their values
// after the last save.
func (i *Item) HasChangedSinceLastSave(mode ChangeMode, fields ...string) bool {
	return i.changed(i.lastSave, mode, fields)
}

func (i *Item) changed(base types.Row, mode ChangeMode, fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	n := 0
	for _, f := range fields {
		if valuesEqual(i.row[f], base[f]) {
			continue
		}
		if mode == ChangedAny {
			return true
		}
		n++
	}
	return mode == ChangedAll && n == len(fields)
}

// valuesEqual compares loosely by display form, except that strings of
// different length never match so "04853" and "4853" stay distinct.
func valuesEqual(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok && len(as) != len(bs) {
		return false
	}
	return display(a) == display(b)
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ArraySeparator)
	default:
		return fmt.Sprint(t)
	}
}

// String returns the name field when the table has one, otherwise a dump of
// every field.
func (i *Item) String() string {
	if _, ok := i.byName["name"]; ok || i.row["name"] != nil {
		return display(i.row["name"])
	}
	return fmt.Sprint(map[string]any(i.row))
}

// Save inserts or updates the record. Inserts into a table whose id column
// is TEXT get a UUID v7; other inserts take the database row id.
func (i *Item) Save(ctx context.Context) error {
	if h, ok := i.model.(BeforeSaver); ok {
		if err := h.BeforeSave(ctx, i); err != nil {
			return err
		}
	}

	if !i.exists {
		if err := i.insert(ctx); err != nil {
			return err
		}
	} else if err := i.update(ctx); err != nil {
		return err
	}

	if h, ok := i.model.(AfterSaver); ok {
		if err := h.AfterSave(ctx, i); err != nil {
			return err
		}
	}
	i.lastSave = cloneRow(i.row)
	return nil
}

func (i *Item) insert(ctx context.Context) error {
	if h, ok := i.model.(BeforeCreator); ok {
		if err := h.BeforeCreate(ctx, i); err != nil {
			return err
		}
	}

	if emptyID(i.row[IDField]) {
		if c, ok := i.byName[IDField]; ok && c.Text() {
			id, err := uuid.NewV7()
			if err != nil {
				id = uuid.New()
			}
			i.row[IDField] = id.String()
		} else {
			delete(i.row, IDField)
		}
	}

	info, err := i.DBInfo()
	if err != nil {
		return err
	}
	stmt, args := "INSERT INTO "+query.QuoteIdentifier(i.table)+" DEFAULT VALUES", []any(nil)
	if len(info) > 0 {
		stmt, args, err = sb.Insert(query.QuoteIdentifier(i.table)).SetMap(quoteKeys(info)).ToSql()
		if err != nil {
			return fmt.Errorf("render insert: %w", err)
		}
	}
	res, err := i.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if emptyID(i.row[IDField]) {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrExecution, err)
		}
		i.row[IDField] = id
	}
	i.exists = true

	if h, ok := i.model.(AfterCreator); ok {
		return h.AfterCreate(ctx, i)
	}
	return nil
}

func (i *Item) update(ctx context.Context) error {
	info, err := i.DBInfo()
	if err != nil {
		return err
	}
	stmt, args, err := sb.Update(query.QuoteIdentifier(i.table)).
		SetMap(quoteKeys(info)).
		Where(sq.Eq{query.QuoteIdentifier(IDField): i.ID()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("render update: %w", err)
	}
	_, err = i.db.ExecContext(ctx, stmt, args...)
	return err
}

func quoteKeys(info types.Row) map[string]any {
	return lo.MapKeys(info, func(_ any, k string) string { return query.QuoteIdentifier(k) })
}

// Delete removes the record. It reports false without touching the
// database when the record has no id.
func (i *Item) Delete(ctx context.Context) (bool, error) {
	if emptyID(i.ID()) {
		return false, nil
	}
	if h, ok := i.model.(BeforeDeleter); ok {
		if err := h.BeforeDelete(ctx, i); err != nil {
			return false, err
		}
	}

	stmt, args, err := sb.Delete(query.QuoteIdentifier(i.table)).
		Where(sq.Eq{query.QuoteIdentifier(IDField): i.ID()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("render delete: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, stmt, args...); err != nil {
		return false, err
	}
	i.exists = false

	if h, ok := i.model.(AfterDeleter); ok {
		if err := h.AfterDelete(ctx, i); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Validates runs the model's instructions for subset and reports whether
// they all passed. Records whose model declares no instructions always
// pass.
func (i *Item) Validates(ctx context.Context, subset string) (bool, error) {
	v, ok := i.model.(Validated)
	if !ok {
		return true, nil
	}
	ins := v.Validation(subset)
	if len(ins) == 0 {
		return true, nil
	}
	if err := i.validator.Validate(ctx, ins); err != nil {
		return false, err
	}
	return i.validator.Passed(), nil
}

// Errors returns the distinct messages of the last validation.
func (i *Item) Errors() []string {
	return i.validator.Errors()
}

// ErrorMessage joins Errors with spaces.
func (i *Item) ErrorMessage() string {
	return strings.Join(i.validator.Errors(), " ")
}

// InvalidFields returns the fields that failed the last validation.
func (i *Item) InvalidFields() []string {
	return i.validator.InvalidFields()
}

// IsUnique reports whether no other record of the table has the same value
// in field. where, when set, further restricts the records compared.
func (i *Item) IsUnique(ctx context.Context, field, where string) (bool, error) {
	l := newList(i.db, i.table).Where(query.QuoteIdentifier(field)+" = ?", i.Get(field))
	if i.exists {
		l.Where(query.QuoteIdentifier(IDField)+" != ?", i.ID())
	}
	if where != "" {
		l.Where(where)
	}
	n, err := l.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
