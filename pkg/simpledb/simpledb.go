// Package simpledb is the public entry point of the data access layer.
//
//	db, err := simpledb.Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: "data"})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	products, err := db.Table("products")
//	if err != nil {
//		return err
//	}
//	for _, item := range products.Where("on_sale = ?", 1).Order("name").All(ctx) {
//		fmt.Println(item.Get("name"))
//	}
package simpledb

import (
	"context"

	"github.com/mesh-intelligence/simpledb/internal/sqlite"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Version is the release of this module.
const Version = "0.1.0"

type (
	// DB is the owning connection.
	DB = sqlite.DB
	// List is a deferred query over one table.
	List = sqlite.List
	// Item is one record.
	Item = sqlite.Item
	// Model binds a record type to its table.
	Model = sqlite.Model
	// Option configures Open.
	Option = sqlite.Option
	// Stats summarizes executed statements.
	Stats = sqlite.Stats
)

// Capability contracts satisfied by *List.
type (
	Sequence = sqlite.Sequence
	Sizer    = sqlite.Sizer
	Indexer  = sqlite.Indexer
)

// Open opens the database described by cfg.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*DB, error) {
	return sqlite.Open(ctx, cfg, opts...)
}

// WithLogger and WithQueryStats configure Open.
var (
	WithLogger     = sqlite.WithLogger
	WithQueryStats = sqlite.WithQueryStats
)

// DumpJSONL writes every record of l to path as JSON lines.
func DumpJSONL(ctx context.Context, l *List, path string) (int, error) {
	return sqlite.DumpJSONL(ctx, l, path)
}

// LoadJSONL inserts every well-formed JSON line of path into table.
func LoadJSONL(ctx context.Context, db *DB, table, path string) (int, error) {
	return sqlite.LoadJSONL(ctx, db, table, path)
}
