package simpledb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func TestOpenAndQuery(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, WithQueryStats(true))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `CREATE TABLE tasks (id INTEGER PRIMARY KEY, title TEXT, done INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO tasks (title, done) VALUES ('write', 1), ('test', 0), ('ship', 0)`)
	require.NoError(t, err)

	tasks, err := db.Table("tasks")
	require.NoError(t, err)

	var seq Sequence = tasks.Where("done = 0").Order("title")
	var titles []string
	for seq.Rewind(); seq.Valid(ctx); seq.Advance() {
		titles = append(titles, seq.Current().Get("title").(string))
	}
	require.NoError(t, seq.Err())
	assert.Equal(t, []string{"ship", "test"}, titles)

	var sizer Sizer = tasks
	n, err := sizer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Positive(t, db.QueryStats().Count)
}
