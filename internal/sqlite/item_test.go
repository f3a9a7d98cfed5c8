package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/internal/validate"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// productModel records the hooks it sees.
type productModel struct {
	calls    []string
	rejectOn string
}

func (m *productModel) Table() string        { return "products" }
func (m *productModel) ArrayFields() []string { return []string{"tags"} }

func (m *productModel) Init(item *Item) {
	m.calls = append(m.calls, "init")
}

func (m *productModel) BeforeSave(_ context.Context, item *Item) error {
	m.calls = append(m.calls, "beforeSave")
	if name, ok := item.Get("name").(string); ok {
		if m.rejectOn != "" && name == m.rejectOn {
			return errors.New("rejected")
		}
		item.Set("name", strings.TrimSpace(name))
	}
	return nil
}

func (m *productModel) AfterSave(context.Context, *Item) error {
	m.calls = append(m.calls, "afterSave")
	return nil
}

func (m *productModel) BeforeCreate(context.Context, *Item) error {
	m.calls = append(m.calls, "beforeCreate")
	return nil
}

func (m *productModel) AfterCreate(context.Context, *Item) error {
	m.calls = append(m.calls, "afterCreate")
	return nil
}

func (m *productModel) BeforeDelete(context.Context, *Item) error {
	m.calls = append(m.calls, "beforeDelete")
	return nil
}

func (m *productModel) AfterDelete(context.Context, *Item) error {
	m.calls = append(m.calls, "afterDelete")
	return nil
}

func (m *productModel) Validation(subset string) validate.Instructions {
	switch subset {
	case "unique":
		return validate.Instructions{validate.Field("name", `isUnique error="Name taken."`)}
	case "none":
		return nil
	default:
		return append(validate.Require("name"), validate.Field("price", `isNumeric min="0"`))
	}
}

func TestInsertWithIntegerID(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, err := db.New(ctx, "products", types.Row{"name": "Lamp", "price": 30})
	require.NoError(t, err)
	assert.False(t, item.Exists())
	require.NoError(t, item.Save(ctx))
	assert.True(t, item.Exists())
	assert.Equal(t, int64(5), item.ID())

	got, ok, err := products(t, db).ID(ctx, item.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Lamp", got.Get("name"))
	assert.Equal(t, 30.0, got.Get("price"))
}

func TestInsertWithTextIDUsesUUID(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, err := db.New(ctx, "notes", types.Row{"body": "remember"})
	require.NoError(t, err)
	require.NoError(t, item.Save(ctx))

	id, ok := item.ID().(string)
	require.True(t, ok)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	notes, err := db.Table("notes")
	require.NoError(t, err)
	assert.Equal(t, 1, mustCount(t, notes.WhereIDIn(id)))
}

func TestInsertDefaultValues(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, err := db.New(ctx, "categories", nil)
	require.NoError(t, err)
	require.NoError(t, item.Save(ctx))
	assert.Equal(t, int64(3), item.ID())
}

func TestUpdate(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, ok, err := products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	item.Set("price", 2.0)
	item.Set("bogus", "not a column")
	require.NoError(t, item.Save(ctx))

	again, _, err := products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Get("price"))
	assert.Equal(t, 4, mustCount(t, products(t, db)))
}

func TestDelete(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	unsaved, err := db.New(ctx, "products", types.Row{"name": "Ghost"})
	require.NoError(t, err)
	deleted, err := unsaved.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)

	item, _, err := products(t, db).ID(ctx, 2)
	require.NoError(t, err)
	deleted, err = item.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, item.Exists())
	assert.Equal(t, 3, mustCount(t, products(t, db)))
}

func TestSetNullsEmptyNullableColumn(t *testing.T) {
	db := openShop(t)
	item, err := db.New(context.Background(), "products", types.Row{"name": "Cup", "price": 3})
	require.NoError(t, err)

	item.Set("price", "")
	item.Set("name", "")
	assert.Nil(t, item.Get("price"))
	assert.Equal(t, "", item.Get("name"))
}

func TestHooksRunInOrder(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	m := &productModel{}
	db.Register(m)

	item, err := db.New(ctx, "products", types.Row{"name": "  Mug  "})
	require.NoError(t, err)
	require.NoError(t, item.Save(ctx))
	assert.Equal(t, "Mug", item.Get("name"))

	_, err = item.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"init", "beforeSave", "beforeCreate", "afterCreate", "afterSave",
		"beforeDelete", "afterDelete",
	}, m.calls)

	m.rejectOn = "Bad"
	bad, err := db.New(ctx, "products", types.Row{"name": "Bad"})
	require.NoError(t, err)
	assert.EqualError(t, bad.Save(ctx), "rejected")
	assert.False(t, bad.Exists())
}

func TestRegistry(t *testing.T) {
	db := openShop(t)
	m := &productModel{}
	db.Register(m)

	got, ok := db.ModelFor("products")
	require.True(t, ok)
	assert.Same(t, m, got)

	table, err := db.TableOf(&productModel{})
	require.NoError(t, err)
	assert.Equal(t, "products", table)

	_, ok = db.ModelFor("categories")
	assert.False(t, ok)
	_, err = db.TableOf(plainModel("x"))
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestArrayFields(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	db.Register(&productModel{})

	item, err := db.New(ctx, "products", types.Row{"name": "Kit", "tags": []string{"red", "large"}})
	require.NoError(t, err)
	require.NoError(t, item.Save(ctx))

	info, err := item.DBInfo()
	require.NoError(t, err)
	assert.Equal(t, "red,large", info["tags"])

	got, _, err := products(t, db).ID(ctx, item.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "large"}, got.Get("tags"))

	plain, _, err := products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, plain.Get("tags"))
}

func TestHasChanged(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, _, err := products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	item.Set("zip", "04853")
	require.NoError(t, item.Save(ctx))

	item, _, err = products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, item.HasChanged(ChangedAny, "name", "price"))

	item.Set("name", "Quill")
	assert.True(t, item.HasChanged(ChangedAny, "name", "price"))
	assert.False(t, item.HasChanged(ChangedAll, "name", "price"))
	assert.Equal(t, "Pen", item.OriginalValue("name"))

	item.Set("price", "1.5")
	assert.False(t, item.HasChanged(ChangedAny, "price"), "loose comparison")

	item.Set("zip", "4853")
	assert.True(t, item.HasChanged(ChangedAny, "zip"), "different length strings differ")

	require.NoError(t, item.Save(ctx))
	assert.False(t, item.HasChangedSinceLastSave(ChangedAny, "name", "zip"))
	assert.True(t, item.HasChanged(ChangedAny, "name"))
	assert.Equal(t, "Quill", item.LastSavedValue("name"))
}

func TestValidation(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	db.Register(&productModel{})

	item, err := db.New(ctx, "products", types.Row{"name": "", "price": "-1"})
	require.NoError(t, err)

	ok, err := item.Validates(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"name", "price"}, item.InvalidFields())
	assert.Contains(t, item.Errors(), validate.DefaultError)
	assert.Contains(t, item.ErrorMessage(), "Please enter a number no less than 0.")

	ok, err = item.Validates(ctx, "none")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsUnique(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	db.Register(&productModel{})

	dup, err := db.New(ctx, "products", types.Row{"name": "Pen"})
	require.NoError(t, err)
	ok, err := dup.Validates(ctx, "unique")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"Name taken."}, dup.Errors())

	existing, _, err := products(t, db).ID(ctx, 1)
	require.NoError(t, err)
	ok, err = existing.Validates(ctx, "unique")
	require.NoError(t, err)
	assert.True(t, ok, "a stored record does not clash with itself")

	unique, err := dup.IsUnique(ctx, "name", "on_sale = 0")
	require.NoError(t, err)
	assert.True(t, unique)
}

func TestItemString(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, _, err := products(t, db).ID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Apple", item.String())

	cat, err := db.New(ctx, "categories", types.Row{"title": "Toys"})
	require.NoError(t, err)
	assert.Contains(t, cat.String(), "title:Toys")
	assert.ElementsMatch(t, []string{"id", "title"}, cat.Fields())
}
