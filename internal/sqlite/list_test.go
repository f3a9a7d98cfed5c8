package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func queryJoin(target, cond, schema string, cols ...string) query.JoinEntry {
	return query.JoinEntry{Kind: types.JoinInner, Target: target, Condition: cond, Columns: cols, Schema: schema}
}

func mustCount(t *testing.T, l *List) int {
	t.Helper()
	n, err := l.Count(context.Background())
	require.NoError(t, err)
	return n
}

func products(t *testing.T, db *DB) *List {
	t.Helper()
	l, err := db.Table("products")
	require.NoError(t, err)
	return l
}

func TestFilterOrderDeleteWhileIterating(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	l := products(t, db).Where("on_sale = ?", 1).Order("name asc")
	var seen []string
	for l.Rewind(); l.Valid(ctx); l.Advance() {
		item := l.Current()
		seen = append(seen, item.Get("name").(string))
		deleted, err := item.Delete(ctx)
		require.NoError(t, err)
		assert.True(t, deleted)
	}
	require.NoError(t, l.Err())
	assert.Equal(t, []string{"Apple", "Pen"}, seen)

	rest := products(t, db).Order("name asc")
	assert.Equal(t, []string{"Chair", "Desk"}, names(t, rest))
}

func TestIteratorContract(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	l := products(t, db).Order("id")

	assert.Nil(t, l.Current())
	require.True(t, l.Valid(ctx))
	require.True(t, l.Valid(ctx), "Valid does not advance")
	assert.Equal(t, 0, l.Index())
	assert.Equal(t, "Pen", l.Current().Get("name"))

	l.Advance()
	require.True(t, l.Valid(ctx))
	assert.Equal(t, 1, l.Index())
	assert.Equal(t, "Desk", l.Current().Get("name"))

	l.Rewind()
	require.True(t, l.Valid(ctx))
	assert.Equal(t, 0, l.Index())
	assert.Equal(t, "Pen", l.Current().Get("name"))
	require.NoError(t, l.Close())
}

func TestRewindAfterMutationRunsLatestQuery(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	l := products(t, db).Order("id")

	require.True(t, l.Valid(ctx))
	l.Where("on_sale = 0")
	n := 0
	for l.Rewind(); l.Valid(ctx); l.Advance() {
		assert.Equal(t, int64(0), l.Current().Get("on_sale"))
		n++
	}
	assert.Equal(t, 2, n)
}

func TestCountIsCached(t *testing.T) {
	db := openShop(t)
	l := products(t, db)

	db.EnableQueryStats(true)
	assert.Equal(t, 4, mustCount(t, l))
	assert.Equal(t, 4, mustCount(t, l))
	assert.Equal(t, 1, db.QueryStats().Count)

	l.Where("1 = 1")
	assert.Equal(t, 4, mustCount(t, l))
	assert.Equal(t, 2, db.QueryStats().Count, "a changed query counts again")
}

func TestCountWrapsQuery(t *testing.T) {
	db := openShop(t)

	grouped := products(t, db).Reset(types.PartColumns).Fields("category_id").Group("category_id")
	assert.Equal(t, 2, mustCount(t, grouped))

	limited := products(t, db).Limit(3, 0)
	assert.Equal(t, 3, mustCount(t, limited))

	joined := products(t, db).JoinInner("categories c", "c.id = products.category_id", "title")
	assert.Equal(t, 4, mustCount(t, joined))
}

func TestAliasReplaysJoins(t *testing.T) {
	db := openShop(t)

	before := products(t, db).
		JoinLeft("categories c", "c.id = p.category_id", "title").
		Where("p.on_sale = ?", 1).
		Alias("p")
	after := products(t, db).
		Alias("p").
		JoinLeft("categories c", "c.id = p.category_id", "title").
		Where("p.on_sale = ?", 1)

	assert.Equal(t, after.Query(), before.Query())
	assert.Equal(t,
		`SELECT "p".*, "c"."title" FROM "products" AS "p" LEFT JOIN "categories" AS "c" ON c.id = p.category_id WHERE (p.on_sale = ?)`,
		before.Query())
	assert.True(t, before.IsJoined())

	titles := map[string]any{}
	for _, item := range before.Order("p.name").All(context.Background()) {
		titles[item.Get("name").(string)] = item.Get("title")
	}
	require.NoError(t, before.Err())
	assert.Equal(t, map[string]any{"Apple": "Food", "Pen": "Office"}, titles)
}

func TestResetFromDropsJoins(t *testing.T) {
	db := openShop(t)
	l := products(t, db).JoinInner("categories c", "c.id = products.category_id", "title")

	l.Reset(types.PartFrom)
	assert.False(t, l.IsJoined())
	l.Alias("p")
	assert.Equal(t, `SELECT "p".* FROM "products" AS "p"`, l.Query())
}

func TestResetAll(t *testing.T) {
	db := openShop(t)
	l := products(t, db).
		Where("on_sale = 1").
		Group("category_id").
		Limit(1, 1).
		JoinInner("categories c", "c.id = products.category_id")
	require.True(t, l.IsJoined())
	require.True(t, l.IsGrouped())
	require.True(t, l.IsLimited())

	l.Reset()
	assert.False(t, l.IsJoined())
	assert.False(t, l.IsGrouped())
	assert.False(t, l.IsLimited())
	assert.Equal(t, `SELECT "products".* FROM "products"`, l.Query())
	assert.Equal(t, 4, mustCount(t, l))
}

func TestAtLeavesListUnlimited(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	l := products(t, db).Order("id")

	n := mustCount(t, l)

	item, ok, err := l.At(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apple", item.Get("name"))

	_, ok, err = l.At(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := l.Exists(ctx, 3)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.False(t, l.IsLimited())
	assert.Equal(t, uint64(0), l.Part(types.PartLimitCount))
	assert.Equal(t, uint64(0), l.Part(types.PartLimitOffset))
	db.EnableQueryStats(true)
	assert.Equal(t, n, mustCount(t, l))
	assert.Zero(t, db.QueryStats().Count, "count stays cached")
	assert.Equal(t, []string{"Pen", "Desk", "Apple", "Chair"}, names(t, l))
}

func TestAtKeepsExistingLimit(t *testing.T) {
	db := openShop(t)
	l := products(t, db).Order("id").Limit(2, 1)

	item, ok, err := l.At(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pen", item.Get("name"))
	assert.Equal(t, uint64(2), l.Part(types.PartLimitCount))
	assert.Equal(t, uint64(1), l.Part(types.PartLimitOffset))
	assert.Equal(t, []string{"Desk", "Apple"}, names(t, l))
}

func TestFirstClearsLimit(t *testing.T) {
	db := openShop(t)
	l := products(t, db).Order("name").Limit(2, 1)

	item, ok, err := l.First(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apple", item.Get("name"))
	assert.False(t, l.IsLimited())
	assert.Equal(t, 4, mustCount(t, l))
}

func TestLast(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, ok, err := products(t, db).Order("name").Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pen", item.Get("name"))

	_, ok, err = products(t, db).Where("price > 1000").Last(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestID(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	item, ok, err := products(t, db).ID(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Desk", item.Get("name"))
	assert.True(t, item.Exists())

	item, ok, err = products(t, db).ID(ctx, "Chair", "name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), item.ID())

	db.EnableQueryStats(true)
	item, ok, err = products(t, db).ID(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, item)
	assert.Zero(t, db.QueryStats().Count)

	_, err = db.Exec(ctx, `INSERT INTO categories (id, title) VALUES (0, 'Zero')`)
	require.NoError(t, err)
	for _, zero := range []any{0, "0"} {
		cats, err := db.Table("categories")
		require.NoError(t, err)
		item, ok, err = cats.ID(ctx, zero)
		require.NoError(t, err)
		require.True(t, ok, "id %#v", zero)
		assert.Equal(t, "Zero", item.Get("title"))
	}
}

func TestPaginate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(ctx, numbersTable)
	require.NoError(t, err)
	for i := 1; i <= 23; i++ {
		_, err := db.Exec(ctx, `INSERT INTO numbers (n) VALUES (?)`, i)
		require.NoError(t, err)
	}
	l, err := db.Table("numbers")
	require.NoError(t, err)
	l.Order("n")

	pages, err := l.Paginate(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 10, mustCount(t, l))

	pages, err = l.Paginate(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, mustCount(t, l))
	var got []int64
	for _, item := range l.All(ctx) {
		got = append(got, item.Get("n").(int64))
	}
	assert.Equal(t, []int64{21, 22, 23}, got)

	_, err = l.Paginate(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, mustCount(t, l))

	_, err = l.Paginate(ctx, 1, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	empty, err := db.Table("numbers")
	require.NoError(t, err)
	pages, err = empty.Where("n > 100").Paginate(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, pages)
	assert.Equal(t, 0, mustCount(t, empty))
}

func TestWhereFieldIn(t *testing.T) {
	db := openShop(t)

	l := products(t, db)
	before := l.Query()
	l.WhereFieldIn("id")
	l.WhereFieldIn("id", []int{})
	l.WhereIDNotIn()
	assert.Equal(t, before, l.Query())

	assert.Equal(t, 2, mustCount(t, products(t, db).WhereIDIn(1, 3)))
	assert.Equal(t, 2, mustCount(t, products(t, db).WhereIDNotIn([]int64{1, 3})))

	in := products(t, db).Alias("p").WhereFieldIn("name", []string{"Pen", "Desk"})
	assert.Contains(t, in.Query(), `"p"."name" IN (?,?)`)
	assert.Equal(t, []string{"Desk", "Pen"}, names(t, in.Order("p.name")))
}

func TestWherePlaceholderForms(t *testing.T) {
	db := openShop(t)

	tests := []struct {
		name string
		cond string
		args []any
		want int
	}{
		{"literal", "on_sale = 1", nil, 2},
		{"one value for every marker", "price > ? OR category_id = ?", []any{1}, 3},
		{"value per marker", "price > ? AND category_id = ?", []any{1, 1}, 3},
		{"indexes", "price < :1 AND category_id = :0", []any{1, 50}, 2},
		{"indexes from slice", "price < :1 AND category_id = :0", []any{[]any{1, 50}}, 2},
		{"named", "name = :n OR name = :m", []any{map[string]any{"n": "Pen", "m": "Apple"}}, 2},
		{"quoted marker ignored", "name != '?' AND on_sale = ?", []any{0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := products(t, db).Where(tt.cond, tt.args...)
			require.NoError(t, l.Err())
			assert.Equal(t, tt.want, mustCount(t, l))
		})
	}
}

func TestBuildErrorSurfacesAtTerminal(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	l := products(t, db).Where("a = ? AND b = ?", 1, 2, 3).Order("name")
	assert.ErrorIs(t, l.Err(), types.ErrInvalidArgument)

	_, err := l.Count(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, _, err = l.At(ctx, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.False(t, l.Valid(ctx))

	bad := products(t, db).Join("categories c extra words", "1")
	assert.ErrorIs(t, bad.Err(), types.ErrInvalidArgument)
	assert.False(t, bad.IsJoined())

	assert.ErrorIs(t, products(t, db).LimitPage(1, 0).Err(), types.ErrInvalidArgument)

	_, err = products(t, db).Reset(types.PartColumns).Count(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.NotErrorIs(t, err, types.ErrExecution)
}

func TestExecutionFailure(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	l := products(t, db).Where("no_such_column = 1")
	_, err := l.Count(ctx)
	assert.ErrorIs(t, err, types.ErrExecution)
	assert.Contains(t, err.Error(), "no_such_column")

	assert.False(t, l.Valid(ctx))
	assert.ErrorIs(t, l.Err(), types.ErrExecution)
}

func TestApply(t *testing.T) {
	db := openShop(t)
	l := products(t, db)

	require.NoError(t, l.Apply("where", "price > ?", "1"))
	require.NoError(t, l.Apply("order", "name DESC"))
	require.NoError(t, l.Apply("limit", "2"))
	assert.Equal(t, []string{"Pen", "Desk"}, names(t, l))

	require.NoError(t, l.Apply("reset", "limitcount", "limitoffset"))
	require.NoError(t, l.Apply("alias", "p"))
	require.NoError(t, l.Apply("joinInner", "categories c", "c.id = p.category_id", "title"))
	require.NoError(t, l.Apply("distinct"))
	assert.Equal(t, 3, mustCount(t, l))

	g := products(t, db).Reset(types.PartColumns).Fields("category_id", "COUNT(*) AS n").Group("category_id")
	require.NoError(t, g.Apply("having", "COUNT(*) > ?", 2))
	require.NoError(t, g.Apply("orHaving", "category_id = ?", 2))
	assert.Contains(t, g.Query(), "HAVING (COUNT(*) > ?) OR (category_id = ?)")
	assert.Equal(t, 2, mustCount(t, g))

	for _, op := range []string{"union", "joinRight", "forUpdate", "bogus"} {
		err := l.Apply(op)
		assert.ErrorIs(t, err, types.ErrUnsupportedOperation, op)
		assert.Contains(t, err.Error(), op)
	}

	assert.ErrorIs(t, l.Apply("reset", "bogus"), types.ErrInvalidArgument)
	assert.ErrorIs(t, l.Apply("limit", "many"), types.ErrInvalidArgument)
	assert.ErrorIs(t, l.Apply("join", "a b c d", "1"), types.ErrInvalidArgument)
	assert.ErrorIs(t, l.Apply("where"), types.ErrInvalidArgument)
	assert.NoError(t, l.Err(), "rejected operations leave the list usable")
}

func TestCloneIsIndependent(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	l := products(t, db).Order("name").JoinLeft("categories c", "c.id = category_id", "title")
	require.True(t, l.Valid(ctx))

	c := l.Clone()
	c.Where("on_sale = 1").Alias("p")

	assert.Equal(t, 4, mustCount(t, l))
	assert.Equal(t, 2, mustCount(t, c))
	assert.NotContains(t, l.Query(), `"p"`)
	assert.Contains(t, c.Query(), `LEFT JOIN "categories" AS "c"`)

	require.True(t, c.Valid(ctx))
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "Apple", l.Current().Get("name"))
}

func TestFieldsKeepJoinedColumns(t *testing.T) {
	db := openShop(t)
	l := products(t, db).JoinInner("categories c", "c.id = products.category_id", "title").
		Reset(types.PartColumns).
		Fields("id", "name AS label")

	assert.Equal(t,
		`SELECT "products"."id", "products"."name" AS "label", "c"."title" FROM "products" INNER JOIN "categories" AS "c" ON c.id = products.category_id`,
		l.Query())

	item, ok, err := l.Order("products.id").First(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pen", item.Get("label"))
	assert.Equal(t, "Office", item.Get("title"))
}

func TestConveniences(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()

	kv, err := products(t, db).KeyValue(ctx, "id", "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "Pen", "2": "Desk", "3": "Apple", "4": "Chair"}, kv)

	ids, err := products(t, db).Where("on_sale = 1").Order("id").IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(3)}, ids)

	items, err := products(t, db).ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 4)

	n := 0
	err = products(t, db).Each(ctx, func(item *Item) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for i := range products(t, db).Order("id").All(ctx) {
		if i == 1 {
			break
		}
	}

	s := products(t, db).Order("id").String()
	assert.Contains(t, s, "List(products)")
	assert.Contains(t, s, `ORDER BY id`)
	assert.Contains(t, s, "Pen")
}
