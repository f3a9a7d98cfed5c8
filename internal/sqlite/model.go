package sqlite

import (
	"context"

	"github.com/mesh-intelligence/simpledb/internal/validate"
)

// Model binds a record type to its table. Models may also implement any of
// the hook interfaces below; records call them around persistence.
type Model interface {
	Table() string
}

// Initializer runs once when a record is constructed.
type Initializer interface {
	Init(item *Item)
}

// BeforeSaver runs before every save. An error aborts the save.
type BeforeSaver interface {
	BeforeSave(ctx context.Context, item *Item) error
}

// AfterSaver runs after every successful save.
type AfterSaver interface {
	AfterSave(ctx context.Context, item *Item) error
}

// BeforeCreator runs before an insert, after BeforeSave.
type BeforeCreator interface {
	BeforeCreate(ctx context.Context, item *Item) error
}

// AfterCreator runs after an insert, before AfterSave.
type AfterCreator interface {
	AfterCreate(ctx context.Context, item *Item) error
}

// BeforeDeleter runs before a delete. An error aborts the delete.
type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, item *Item) error
}

// AfterDeleter runs after a successful delete.
type AfterDeleter interface {
	AfterDelete(ctx context.Context, item *Item) error
}

// Validated supplies validation instructions. An empty subset asks for the
// default set.
type Validated interface {
	Validation(subset string) validate.Instructions
}

// ArrayFielder names the columns stored as separator-joined strings and
// exposed as []string.
type ArrayFielder interface {
	ArrayFields() []string
}

// ArraySeparator joins array fields in storage.
const ArraySeparator = ","

// plainModel is used for tables with no registered model.
type plainModel string

func (m plainModel) Table() string { return string(m) }
