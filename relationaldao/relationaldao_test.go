package relationaldao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dataops.dev/dao"
)

func TestSqlTypeInfersColumnTypes(t *testing.T) {
	assert.Equal(t, "TEXT", sqlType("hello"))
	assert.Equal(t, "BOOLEAN", sqlType(true))
	assert.Equal(t, "BIGINT", sqlType(42))
	assert.Equal(t, "DOUBLE PRECISION", sqlType(3.14))
	assert.Equal(t, "TIMESTAMPTZ", sqlType(time.Now()))
	assert.Equal(t, "JSONB", sqlType([]any{1, 2}))
	assert.Equal(t, "JSONB", sqlType(map[string]any{"a": 1}))
}

func TestColumnWhereEqProducesQuotedColumnPredicate(t *testing.T) {
	where, params, err := columnWhere(dao.Eq("status", "active"), 1)
	require.NoError(t, err)
	assert.Equal(t, `"status" = $1`, where)
	assert.Equal(t, []any{"active"}, params)
}

func TestColumnWhereNilRendersIsNull(t *testing.T) {
	where, params, err := columnWhere(dao.Eq("deleted_at", nil), 1)
	require.NoError(t, err)
	assert.Equal(t, `"deleted_at" IS NULL`, where)
	assert.Empty(t, params)
}

func TestColumnWhereRejectsInvalidIdentifier(t *testing.T) {
	_, _, err := columnWhere(dao.Eq("bad col", "x"), 1)
	assert.Error(t, err)
}

func TestQuotedListQuotesEachColumn(t *testing.T) {
	assert.Equal(t, `"id", "name"`, quotedList([]string{"id", "name"}))
}

func TestEntityToRowRequiresID(t *testing.T) {
	_, err := entityToRow(dao.Entity{"name": "x"})
	assert.Error(t, err)
}

func TestEntityToRowRoundTripsViaRowToEntity(t *testing.T) {
	row, err := entityToRow(dao.Entity{"id": "abc", "name": "widget"})
	require.NoError(t, err)
	entity, err := rowToEntity(*row)
	require.NoError(t, err)
	assert.Equal(t, "abc", entity["id"])
	assert.Equal(t, "widget", entity["name"])
}
