// Package sqlite implements the simpledb data access layer on SQLite: the
// owning connection, per-table lists with deferred queries, records and
// JSONL import/export.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	msqlite "modernc.org/sqlite"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Connection-scoped pragmas, applied to every pooled connection through the
// DSN. WAL lets a record be written while a list still holds an open cursor
// on another connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

const maxIdleConns = 2

// DB is the owning connection. It resolves tables, hands out lists and
// records, and executes every statement they build.
type DB struct {
	mu        sync.RWMutex
	conn      *sql.DB
	connector *connector
	cfg       types.Config
	log       zerolog.Logger
	closed    bool

	tables  map[string]struct{}
	info    map[string][]Column
	models  map[string]Model
	byType  map[reflect.Type]string

	statsMu sync.Mutex
	statsOn bool
	stats   Stats
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for statement logging.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.log = l }
}

// WithQueryStats enables query statistics from the start.
func WithQueryStats(on bool) Option {
	return func(db *DB) { db.statsOn = on }
}

// Open opens the SQLite database named by cfg, creating DataDir when
// needed, and loads the table names.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	c := &connector{dsn: dsn(cfg.DatabaseFile()), driver: &msqlite.Driver{}}
	db := &DB{
		conn:      sql.OpenDB(c),
		connector: c,
		cfg:       cfg,
		log:       zerolog.Nop(),
		tables:    map[string]struct{}{},
		info:      map[string][]Column{},
		models:    map[string]Model{},
		byType:    map[reflect.Type]string{},
	}
	for _, opt := range opts {
		opt(db)
	}
	db.conn.SetMaxIdleConns(maxIdleConns)

	if err := db.conn.PingContext(ctx); err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrExecution, cfg.DatabaseFile(), err)
	}
	if err := db.ReloadTableNames(ctx); err != nil {
		db.conn.Close()
		return nil, err
	}
	db.log.Debug().Str("file", cfg.DatabaseFile()).Int("tables", len(db.tables)).Msg("database opened")
	return db, nil
}

func dsn(file string) string {
	params := lo.Map(pragmas, func(p string, _ int) string { return "_pragma=" + p })
	return "file:" + file + "?" + strings.Join(params, "&")
}

// Close releases the connection pool. Close is idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.LogQueryStats()
	return db.conn.Close()
}

// Config returns the configuration the database was opened with.
func (db *DB) Config() types.Config {
	return db.cfg
}

// Table returns a fresh list over name.
func (db *DB) Table(name string) (*List, error) {
	if err := db.checkTable(name); err != nil {
		return nil, err
	}
	return newList(db, name), nil
}

func (db *DB) checkTable(name string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return types.ErrClosed
	}
	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return nil
}

// Register binds models to their tables. A later registration for the same
// table replaces the earlier one.
func (db *DB) Register(models ...Model) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, m := range models {
		db.models[m.Table()] = m
		db.byType[reflect.TypeOf(m)] = m.Table()
	}
}

// ModelFor returns the model registered for table.
func (db *DB) ModelFor(table string) (Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[table]
	return m, ok
}

// TableOf returns the table registered for the model type of m.
func (db *DB) TableOf(m Model) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	table, ok := db.byType[reflect.TypeOf(m)]
	if !ok {
		return "", fmt.Errorf("%w: no table registered for %T", types.ErrTableNotFound, m)
	}
	return table, nil
}

func (db *DB) modelOrPlain(table string) Model {
	if m, ok := db.ModelFor(table); ok {
		return m
	}
	return plainModel(table)
}

// New returns an unsaved record for table holding row.
func (db *DB) New(ctx context.Context, table string, row types.Row) (*Item, error) {
	if err := db.checkTable(table); err != nil {
		return nil, err
	}
	return newItem(ctx, db, table, row)
}

// TableNames returns the known table and view names, sorted. Tables of
// attached databases are prefixed with their schema name.
func (db *DB) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := lo.Keys(db.tables)
	sort.Strings(names)
	return names
}

// ReloadTableNames rereads the table names of the main and every attached
// database.
func (db *DB) ReloadTableNames(ctx context.Context) error {
	schemas := append([]string{""}, db.connector.schemas()...)
	tables := map[string]struct{}{}
	for _, schema := range schemas {
		master := "sqlite_master"
		if schema != "" {
			master = query.QuoteIdentifier(schema) + ".sqlite_master"
		}
		names, err := db.queryStrings(ctx,
			"SELECT name FROM "+master+" WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'")
		if err != nil {
			return err
		}
		for _, n := range names {
			if schema != "" {
				n = schema + "." + n
			}
			tables[n] = struct{}{}
		}
	}

	db.mu.Lock()
	db.tables = tables
	db.mu.Unlock()
	return nil
}

// Attach attaches the database file under schema on every connection and
// merges its tables into the table names.
func (db *DB) Attach(ctx context.Context, file, schema string) error {
	if file == "" || schema == "" {
		return fmt.Errorf("%w: attach needs a file and a schema name", types.ErrInvalidArgument)
	}
	db.connector.attach(attachment{file: file, schema: schema})

	// Drop idle connections so the next one is opened with the attachment.
	db.conn.SetMaxIdleConns(0)
	db.conn.SetMaxIdleConns(maxIdleConns)

	conn, err := db.conn.Conn(ctx)
	if err != nil {
		db.connector.detach(schema)
		return fmt.Errorf("%w: attach %s: %w", types.ErrExecution, file, err)
	}
	conn.Close()

	db.log.Info().Str("file", file).Str("schema", schema).Msg("database attached")
	return db.ReloadTableNames(ctx)
}

// Exec binds args into stmt like List.Where and executes it.
func (db *DB) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	bound, vals, err := query.Bind(stmt, args...)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, bound, vals...)
	if err != nil {
		return nil, err
	}
	if isSchemaChange(bound) {
		db.RefreshCache()
		if err := db.ReloadTableNames(ctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func isSchemaChange(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "CREATE", "DROP", "ALTER":
		return true
	}
	return false
}

// Query binds args into stmt like List.Where and runs it.
func (db *DB) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	bound, vals, err := query.Bind(stmt, args...)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, bound, vals...)
}

// ExecContext executes a statement that uses "?" markers only.
func (db *DB) ExecContext(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx, stmt, args...)
	db.observe(stmt, args, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	return res, nil
}

// QueryContext runs a statement that uses "?" markers only.
func (db *DB) QueryContext(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	db.observe(stmt, args, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	return rows, nil
}

func (db *DB) queryStrings(ctx context.Context, stmt string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	return out, nil
}

// Quote renders v as a SQL literal.
func (db *DB) Quote(v any) string {
	return query.QuoteValue(v)
}

// QuoteIdentifier quotes a table or column name.
func (db *DB) QuoteIdentifier(name string) string {
	return query.QuoteIdentifier(name)
}

// QuoteInto renders stmt with its placeholders replaced by literal values.
// The result is for display; statements are executed with bound arguments.
func (db *DB) QuoteInto(stmt string, args ...any) (string, error) {
	return query.QuoteInto(stmt, args...)
}

// connector opens modernc connections and replays ATTACH statements on each
// new one, since attachments are scoped to a single SQLite connection.
type connector struct {
	mu       sync.Mutex
	dsn      string
	driver   *msqlite.Driver
	attached []attachment
}

type attachment struct {
	file   string
	schema string
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	attached := slices.Clone(c.attached)
	c.mu.Unlock()

	for _, a := range attached {
		if err := a.apply(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

func (c *connector) attach(a attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = slices.DeleteFunc(c.attached, func(x attachment) bool { return x.schema == a.schema })
	c.attached = append(c.attached, a)
}

func (c *connector) detach(schema string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = slices.DeleteFunc(c.attached, func(x attachment) bool { return x.schema == schema })
}

func (c *connector) schemas() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.attached, func(a attachment, _ int) string { return a.schema })
}

func (a attachment) apply(ctx context.Context, conn driver.Conn) error {
	ex, ok := conn.(driver.ExecerContext)
	if !ok {
		return fmt.Errorf("attach %s: connection cannot execute statements", a.schema)
	}
	stmt := "ATTACH DATABASE ? AS " + query.QuoteIdentifier(a.schema)
	if _, err := ex.ExecContext(ctx, stmt, []driver.NamedValue{{Ordinal: 1, Value: a.file}}); err != nil {
		return fmt.Errorf("attach %s: %w", a.schema, err)
	}
	return nil
}
