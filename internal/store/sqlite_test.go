package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/document"
	"github.com/roach88/strata/internal/query"
)

// seqRevs returns a revision-suffix source yielding rev-1, rev-2, ...
func seqRevs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rev-%d", n)
	}
}

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithRevSuffix(seqRevs()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPut_CreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "user/1", document.Document{"type": "user", "email": "a@b.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "user/1", res.ID)
	assert.Equal(t, "1-rev-1", res.Rev)

	doc, err := s.Get(ctx, "user/1")
	require.NoError(t, err)
	assert.Equal(t, "user/1", doc.ID())
	assert.Equal(t, "1-rev-1", doc.Rev())
	assert.Equal(t, "user", doc.Type())
	assert.Equal(t, "a@b.com", doc["email"])
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "user/missing")
	assert.True(t, IsNotFound(err))
}

func TestPut_CreateConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "user/1", document.Document{"type": "user"}, "")
	require.NoError(t, err)

	_, err = s.Put(ctx, "user/1", document.Document{"type": "user"}, "")
	assert.True(t, IsConflict(err))
}

func TestPut_UpdateRevisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Put(ctx, "user/1", document.Document{"type": "user", "name": "ada"}, "")
	require.NoError(t, err)

	updated, err := s.Put(ctx, "user/1", document.Document{"type": "user", "name": "ada", "city": "paris"}, created.Rev)
	require.NoError(t, err)
	assert.Equal(t, "2-rev-2", updated.Rev)

	// A stale revision must not win.
	_, err = s.Put(ctx, "user/1", document.Document{"type": "user"}, created.Rev)
	assert.True(t, IsConflict(err))

	// Updating a missing document is absence, not conflict.
	_, err = s.Put(ctx, "user/404", document.Document{"type": "user"}, "1-x")
	assert.True(t, IsNotFound(err))
}

func TestBulkPut_IndependentOutcomesInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Pre-existing document that doc B will collide with.
	_, err := s.Put(ctx, "user/b", document.Document{"type": "user"}, "")
	require.NoError(t, err)

	docs := []document.Document{
		{"_id": "user/a", "type": "user"},
		{"_id": "user/b", "type": "user"},
		{"_id": "user/c", "type": "user"},
	}
	outcomes, err := s.BulkPut(ctx, docs)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "user/a", outcomes[0].ID)
	assert.NoError(t, outcomes[0].Err)
	assert.NotEmpty(t, outcomes[0].Rev)

	assert.True(t, IsConflict(outcomes[1].Err))

	assert.Equal(t, "user/c", outcomes[2].ID)
	assert.NoError(t, outcomes[2].Err)
	assert.NotEmpty(t, outcomes[2].Rev)
}

func seedUsers(t *testing.T, s *SQLite) {
	t.Helper()
	ctx := context.Background()
	users := []document.Document{
		{"_id": "user/1", "type": "user", "name": "ada", "age": 36, "active": true},
		{"_id": "user/2", "type": "user", "name": "grace", "age": 45, "active": false},
		{"_id": "user/3", "type": "user", "name": "alan", "age": 41, "active": true},
	}
	for _, u := range users {
		_, err := s.Put(ctx, u.ID(), u, "")
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, "org/1", document.Document{"type": "org", "name": "acme"}, "")
	require.NoError(t, err)
}

func TestFind_SelectorWithOperators(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.Find(context.Background(), map[string]any{
		"type": "user",
		"age":  map[string]any{"$gt": 40},
	}, FindOptions{Sort: []query.Order{{Field: "age"}}})
	require.NoError(t, err)

	require.Len(t, res.Docs, 2)
	assert.Equal(t, "user/3", res.Docs[0].ID())
	assert.Equal(t, "user/2", res.Docs[1].ID())
}

func TestFind_TypeConstraintExcludesOtherNamespaces(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.Find(context.Background(), map[string]any{"type": "user"}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Docs, 3)
}

func TestFind_BoolAndOr(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.Find(context.Background(), map[string]any{
		"type": "user",
		"$or": []any{
			map[string]any{"active": true},
			map[string]any{"name": "grace"},
		},
	}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Docs, 3)
}

func TestFind_LimitSkipAndProjection(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.Find(context.Background(), map[string]any{"type": "user"}, FindOptions{
		Limit:  2,
		Skip:   1,
		Fields: []string{"name"},
	})
	require.NoError(t, err)

	require.Len(t, res.Docs, 2)
	for _, doc := range res.Docs {
		assert.NotEmpty(t, doc.ID())
		assert.Contains(t, doc, "name")
		assert.NotContains(t, doc, "age")
	}
}

func TestFind_NoMatchesIsEmptyNotNil(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.Find(context.Background(), map[string]any{"type": "ghost"}, FindOptions{})
	require.NoError(t, err)
	assert.NotNil(t, res.Docs)
	assert.Empty(t, res.Docs)
}

func TestRangeScan_AscendingCoversNamespaceOnly(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	res, err := s.RangeScan(context.Background(), "user", "user/{}", 0, false, true)
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, "user/1", res.Rows[0].ID)
	assert.Equal(t, "user/2", res.Rows[1].ID)
	assert.Equal(t, "user/3", res.Rows[2].ID)
	assert.Equal(t, "ada", res.Rows[0].Doc["name"])
}

func TestRangeScan_DescendingWithInvertedBounds(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	// The compiler hands descending scans inverted bounds.
	res, err := s.RangeScan(context.Background(), "user/{}", "user", 2, true, false)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "user/3", res.Rows[0].ID)
	assert.Equal(t, "user/2", res.Rows[1].ID)
	assert.Nil(t, res.Rows[0].Doc)
}
