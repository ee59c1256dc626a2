package cachedao

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dataops.dev/dao"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	a := NewAdapter(Config{
		RedisURL:    fmt.Sprintf("redis://%s", mr.Addr()),
		Collection:  "widgets",
		IndexFields: []string{"status"},
	})
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Disconnect(context.Background()) })
	return a
}

func TestCreateThenFindByID(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Create(ctx, dao.Entity{"name": "widget-1", "status": "active"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entity, err := a.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "widget-1", entity["name"])
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	a := newTestAdapter(t)
	entity, err := a.FindByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, entity)
}

func TestUpdateMergesPatch(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Create(ctx, dao.Entity{"name": "widget-1", "status": "active"})
	require.NoError(t, err)

	ok, err := a.Update(ctx, id, dao.Entity{"status": "archived"})
	require.NoError(t, err)
	assert.True(t, ok)

	entity, err := a.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "archived", entity["status"])
	assert.Equal(t, "widget-1", entity["name"])
}

func TestDeleteRemovesEntryAndIndex(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Create(ctx, dao.Entity{"name": "widget-1", "status": "active"})
	require.NoError(t, err)

	ok, err := a.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	entity, err := a.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, entity)

	members, err := a.client.SMembers(ctx, a.idxKey("status", "active")).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, id)
}

func TestFindByIndexedFilterIntersectsSets(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.Create(ctx, dao.Entity{"name": "a", "status": "active"})
	require.NoError(t, err)
	_, err = a.Create(ctx, dao.Entity{"name": "b", "status": "archived"})
	require.NoError(t, err)

	results, err := a.Find(ctx, dao.Eq("status", "active"), 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0]["name"])
}

func TestFindWithoutFiltersScansCollection(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.Create(ctx, dao.Entity{"name": "a", "status": "active"})
	require.NoError(t, err)
	_, err = a.Create(ctx, dao.Entity{"name": "b", "status": "archived"})
	require.NoError(t, err)

	results, err := a.Find(ctx, dao.Query{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestClearCollectionRemovesEverything(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.Create(ctx, dao.Entity{"name": "a", "status": "active"})
	require.NoError(t, err)

	require.NoError(t, a.ClearCollection(ctx))

	results, err := a.Find(ctx, dao.Query{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCustomTTLOverridesDefault(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Create(ctx, dao.Entity{"name": "a", "_ttl": 60})
	require.NoError(t, err)

	ttl := a.client.TTL(ctx, a.key(id))
	val, err := ttl.Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, val.Seconds(), float64(60))
	assert.Greater(t, val.Seconds(), float64(0))
}
