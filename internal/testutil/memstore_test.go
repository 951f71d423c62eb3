package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/store"
)

func seedMem(t *testing.T) *MemStore {
	t.Helper()
	m := NewMemStore()
	ctx := context.Background()
	for _, doc := range []document.Document{
		{"_id": "user/1", "type": "user", "name": "ada", "age": 36, "active": true},
		{"_id": "user/2", "type": "user", "name": "grace", "age": 45, "active": false},
		{"_id": "user/3", "type": "user", "name": "alan", "age": 41, "active": true},
		{"_id": "org/1", "type": "org", "name": "acme"},
	} {
		_, err := m.Put(ctx, doc.ID(), doc, "")
		require.NoError(t, err)
	}
	return m
}

func TestMemStore_RevisionSemantics(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	created, err := m.Put(ctx, "user/1", document.Document{"type": "user"}, "")
	require.NoError(t, err)
	assert.Equal(t, "1-rev-1", created.Rev)

	_, err = m.Put(ctx, "user/1", document.Document{"type": "user"}, "")
	assert.True(t, store.IsConflict(err))

	updated, err := m.Put(ctx, "user/1", document.Document{"type": "user", "name": "ada"}, created.Rev)
	require.NoError(t, err)
	assert.Equal(t, "2-rev-2", updated.Rev)

	_, err = m.Put(ctx, "user/1", document.Document{"type": "user"}, created.Rev)
	assert.True(t, store.IsConflict(err))

	_, err = m.Put(ctx, "user/404", document.Document{"type": "user"}, "1-x")
	assert.True(t, store.IsNotFound(err))

	_, err = m.Get(ctx, "user/404")
	assert.True(t, store.IsNotFound(err))
}

func TestMemStore_FindMatchesSelectorDialect(t *testing.T) {
	m := seedMem(t)

	res, err := m.Find(context.Background(), map[string]any{
		"type": "user",
		"age":  map[string]any{"$gt": 40},
	}, store.FindOptions{Sort: []query.Order{{Field: "age", Descending: true}}})
	require.NoError(t, err)

	require.Len(t, res.Docs, 2)
	assert.Equal(t, "user/2", res.Docs[0].ID())
	assert.Equal(t, "user/3", res.Docs[1].ID())
}

func TestMemStore_FindOrInAndProjection(t *testing.T) {
	m := seedMem(t)

	res, err := m.Find(context.Background(), map[string]any{
		"type": "user",
		"$or": []any{
			map[string]any{"name": map[string]any{"$in": []any{"ada", "grace"}}},
			map[string]any{"active": true},
		},
	}, store.FindOptions{Fields: []string{"name"}})
	require.NoError(t, err)

	require.Len(t, res.Docs, 3)
	for _, doc := range res.Docs {
		assert.NotEmpty(t, doc.ID())
		assert.Contains(t, doc, "name")
		assert.NotContains(t, doc, "age")
	}
}

func TestMemStore_FindEmptyIsNotNil(t *testing.T) {
	m := seedMem(t)

	res, err := m.Find(context.Background(), map[string]any{"type": "ghost"}, store.FindOptions{})
	require.NoError(t, err)
	assert.NotNil(t, res.Docs)
	assert.Empty(t, res.Docs)
}

func TestMemStore_RangeScan(t *testing.T) {
	m := seedMem(t)
	ctx := context.Background()

	asc, err := m.RangeScan(ctx, "user", "user/{}", 0, false, true)
	require.NoError(t, err)
	require.Len(t, asc.Rows, 3)
	assert.Equal(t, "user/1", asc.Rows[0].ID)
	assert.Equal(t, "ada", asc.Rows[0].Doc["name"])

	// Descending scans arrive with inverted bounds.
	desc, err := m.RangeScan(ctx, "user/{}", "user", 2, true, false)
	require.NoError(t, err)
	require.Len(t, desc.Rows, 2)
	assert.Equal(t, "user/3", desc.Rows[0].ID)
	assert.Equal(t, "user/2", desc.Rows[1].ID)
	assert.Nil(t, desc.Rows[0].Doc)
}

func TestMemStore_BulkPutIndependentOutcomes(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	_, err := m.Put(ctx, "user/b", document.Document{"type": "user"}, "")
	require.NoError(t, err)

	outcomes, err := m.BulkPut(ctx, []document.Document{
		{"_id": "user/a", "type": "user"},
		{"_id": "user/b", "type": "user"},
		{"_id": "user/c", "type": "user"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.True(t, store.IsConflict(outcomes[1].Err))
	assert.NoError(t, outcomes[2].Err)
}

func TestMemStore_FailNext(t *testing.T) {
	m := seedMem(t)
	boom := errors.New("boom")
	m.FailNext("get", boom)

	_, err := m.Get(context.Background(), "user/1")
	assert.ErrorIs(t, err, boom)

	// Only the next call fails.
	_, err = m.Get(context.Background(), "user/1")
	assert.NoError(t, err)
}
