package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Column describes one table column as reported by PRAGMA table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    any
	PrimaryKey bool
}

// Nullable reports whether the column accepts NULL.
func (c Column) Nullable() bool {
	return !c.NotNull && !c.PrimaryKey
}

// Text reports whether the column has TEXT affinity.
func (c Column) Text() bool {
	t := strings.ToUpper(c.Type)
	return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
}

// TableInfo returns the columns of table. Results are cached until
// RefreshCache.
func (db *DB) TableInfo(ctx context.Context, table string) ([]Column, error) {
	db.mu.RLock()
	cols, ok := db.info[table]
	db.mu.RUnlock()
	if ok {
		return cols, nil
	}

	stmt := "PRAGMA table_info(" + query.QuoteIdentifier(table) + ")"
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		stmt = "PRAGMA " + query.QuoteIdentifier(table[:i]) + ".table_info(" + query.QuoteIdentifier(table[i+1:]) + ")"
	}
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			c       Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk != 0
		if dflt.Valid {
			c.Default = dflt.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}

	db.mu.Lock()
	db.info[table] = cols
	db.mu.Unlock()
	return cols, nil
}

// RefreshCache drops cached table metadata.
func (db *DB) RefreshCache() {
	db.mu.Lock()
	db.info = map[string][]Column{}
	db.mu.Unlock()
}
