package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSelector_BareEquality(t *testing.T) {
	sql, params, err := compileSelector(map[string]any{"type": "user", "email": "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.email') = ? AND json_extract(body, '$.type') = ?", sql)
	assert.Equal(t, []any{"a@b.com", "user"}, params)
}

func TestCompileSelector_OperatorMap(t *testing.T) {
	sql, params, err := compileSelector(map[string]any{
		"age": map[string]any{"$gt": 5, "$lt": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.age') > ? AND json_extract(body, '$.age') < ?", sql)
	assert.Equal(t, []any{5, 10}, params)
}

func TestCompileSelector_In(t *testing.T) {
	sql, params, err := compileSelector(map[string]any{
		"role": map[string]any{"$in": []any{"admin", "editor"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.role') IN (?, ?)", sql)
	assert.Equal(t, []any{"admin", "editor"}, params)
}

func TestCompileSelector_EmptyIn(t *testing.T) {
	sql, params, err := compileSelector(map[string]any{
		"role": map[string]any{"$in": []any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
	assert.Empty(t, params)
}

func TestCompileSelector_Or(t *testing.T) {
	sql, params, err := compileSelector(map[string]any{
		"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "((json_extract(body, '$.a') = ?) OR (json_extract(body, '$.b') = ?))", sql)
	assert.Equal(t, []any{1, 2}, params)
}

func TestCompileSelector_BoolsBindAsIntegers(t *testing.T) {
	_, params, err := compileSelector(map[string]any{"active": true})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, params)
}

func TestCompileSelector_UnknownOperator(t *testing.T) {
	_, _, err := compileSelector(map[string]any{
		"name": map[string]any{"$regex": ".*"},
	})
	assert.Error(t, err)
}

func TestCompileSelector_Deterministic(t *testing.T) {
	sel := map[string]any{"z": 1, "a": 2, "m": map[string]any{"$gte": 3, "$lte": 9}}
	first, _, err := compileSelector(sel)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, _, err := compileSelector(sel)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
