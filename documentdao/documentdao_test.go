package documentdao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dataops.dev/dao"
)

func TestToDocStampsUnderscoreID(t *testing.T) {
	doc := toDoc("abc", dao.Entity{"id": "abc", "name": "widget"})
	assert.Equal(t, "abc", doc["_id"])
	assert.Equal(t, "widget", doc["name"])
	_, hasID := doc["id"]
	assert.False(t, hasID)
}

func TestFromDocRestoresIDAndDropsRev(t *testing.T) {
	entity := fromDoc(map[string]any{"_id": "abc", "_rev": "1-xyz", "name": "widget"})
	assert.Equal(t, "abc", entity["id"])
	assert.Equal(t, "widget", entity["name"])
	_, hasRev := entity["_rev"]
	assert.False(t, hasRev)
}

func TestMangoSelectorEmptyQueryMatchesEverything(t *testing.T) {
	selector, err := mangoSelector(dao.Query{})
	require.NoError(t, err)
	assert.Empty(t, selector)
}

func TestMangoSelectorTranslatesEqAndCmp(t *testing.T) {
	q := dao.And(dao.Eq("status", "active"), dao.Cmp("age", dao.OpGT, 18))
	selector, err := mangoSelector(q)
	require.NoError(t, err)
	clauses, ok := selector["$and"].([]any)
	require.True(t, ok)
	assert.Len(t, clauses, 2)
}
