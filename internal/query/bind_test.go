package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

func TestBind(t *testing.T) {
	tests := []struct {
		name     string
		cond     string
		args     []any
		wantSQL  string
		wantArgs []any
	}{
		{"no args", "on_sale = 1", nil, "on_sale = 1", nil},
		{"single value", "on_sale = ?", []any{1}, "on_sale = ?", []any{1}},
		{"single value fills every marker", "a = ? OR b = ?", []any{"x"}, "a = ? OR b = ?", []any{"x", "x"}},
		{"one value per marker", "a = ? AND b = ?", []any{1, 2}, "a = ? AND b = ?", []any{1, 2}},
		{"index markers", "a = :1 AND b = :0", []any{"zero", "one"}, "a = ? AND b = ?", []any{"one", "zero"}},
		{"index markers from slice", "a = :0 OR b = :0", []any{[]any{7}}, "a = ? OR b = ?", []any{7, 7}},
		{"typed slice", "a = ? AND b = ?", []any{[]int{4, 5}}, "a = ? AND b = ?", []any{4, 5}},
		{"named markers", "name = :name AND price > :min", []any{map[string]any{"name": "pen", "min": 2}}, "name = ? AND price > ?", []any{"pen", 2}},
		{"quoted text untouched", "note = '?:x' AND id = ?", []any{3}, "note = '?:x' AND id = ?", []any{3}},
		{"casts untouched", "created::date = :0", []any{"2024-01-01"}, "created::date = ?", []any{"2024-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Bind(tt.cond, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name string
		cond string
		args []any
	}{
		{"marker count mismatch", "a = ? AND b = ?", []any{1, 2, 3}},
		{"missing named key", "a = :missing", []any{map[string]any{"other": 1}}},
		{"index out of range", "a = :4", []any{1, 2}},
		{"non numeric key with list", "a = :name", []any{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Bind(tt.cond, tt.args...)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestQuoteInto(t *testing.T) {
	got, err := QuoteInto("name = ? AND price > ?", "it's", 2.5)
	require.NoError(t, err)
	assert.Equal(t, "name = 'it''s' AND price > 2.5", got)

	got, err = QuoteInto("deleted = :d", map[string]any{"d": nil})
	require.NoError(t, err)
	assert.Equal(t, "deleted = NULL", got)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"products"`, QuoteIdentifier("products"))
	assert.Equal(t, `"aux"."users"`, QuoteIdentifier("aux.users"))
	assert.Equal(t, `"p".*`, QuoteIdentifier("p.*"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "NULL", QuoteValue(nil))
	assert.Equal(t, "1", QuoteValue(true))
	assert.Equal(t, "42", QuoteValue(int64(42)))
	assert.Equal(t, "X'0102'", QuoteValue([]byte{1, 2}))
	assert.Equal(t, "'a''b'", QuoteValue("a'b"))
}

func TestValues(t *testing.T) {
	assert.Equal(t, []any{1, 2}, Values([]int{1, 2}))
	assert.Equal(t, []any{"a", "b"}, Values([]any{"a", "b"}))
	assert.Equal(t, []any{1, 2}, Values(1, 2))
	assert.Equal(t, []any{[]byte("raw")}, Values([]byte("raw")))
	assert.Equal(t, []any{"x"}, Values("x"))
	assert.Empty(t, Values())
}
