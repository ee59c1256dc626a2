package timeseriesdao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dataops.dev/dao"
)

func TestExtractTimestampPrefersEntityField(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := extractTimestamp(dao.Entity{"timestamp": ts})
	assert.True(t, got.Equal(ts))
}

func TestExtractTimestampParsesRFC3339String(t *testing.T) {
	got := extractTimestamp(dao.Entity{"timestamp": "2026-01-02T03:04:05Z"})
	assert.Equal(t, 2026, got.Year())
}

func TestExtractTimestampFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := extractTimestamp(dao.Entity{})
	assert.True(t, !got.Before(before))
}

func TestSqlWhereEqExtractsJSONPayloadField(t *testing.T) {
	clause, params, err := sqlWhere(dao.Eq("sensor", "temp-1"), 1)
	require.NoError(t, err)
	assert.Equal(t, `payload->>'sensor' = $1`, clause)
	assert.Equal(t, []any{"temp-1"}, params)
}

func TestSqlWhereCmpCastsNumeric(t *testing.T) {
	clause, params, err := sqlWhere(dao.Cmp("value", dao.OpGT, 42), 1)
	require.NoError(t, err)
	assert.Contains(t, clause, "::double precision")
	assert.Contains(t, clause, ">")
	assert.Equal(t, []any{42}, params)
}

func TestSqlWhereRejectsInvalidIdentifier(t *testing.T) {
	_, _, err := sqlWhere(dao.Eq("bad;field", "x"), 1)
	assert.Error(t, err)
}

func TestAggFuncDefaultsToAvg(t *testing.T) {
	assert.Equal(t, "avg", aggFunc("unknown"))
	assert.Equal(t, "sum", aggFunc("sum"))
}
