package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("user_id"))
	assert.True(t, ValidIdentifier("_private"))
	assert.False(t, ValidIdentifier("1field"))
	assert.False(t, ValidIdentifier("field; DROP TABLE users"))
	assert.False(t, ValidIdentifier(""))
}

func TestEqMarshalWire(t *testing.T) {
	wire, err := Eq("status", "active").MarshalWire()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "active"}, wire)
}

func TestCmpMarshalWire(t *testing.T) {
	wire, err := Cmp("age", OpGTE, 18).MarshalWire()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": map[string]any{"$gte": 18}}, wire)
}

func TestAndOrRoundTrip(t *testing.T) {
	q := And(Eq("status", "active"), Cmp("age", OpGT, 21), In("role", []any{"admin", "owner"}))
	wire, err := q.MarshalWire()
	require.NoError(t, err)

	back, err := UnmarshalWire(wire)
	require.NoError(t, err)
	assert.Equal(t, "and", back.Kind())
	assert.Len(t, back.Clauses(), 3)

	rewire, err := back.MarshalWire()
	require.NoError(t, err)
	assert.Equal(t, wire, rewire)
}

func TestUnmarshalWireRejectsInvalidIdentifier(t *testing.T) {
	_, err := UnmarshalWire(map[string]any{"bad field!": "x"})
	assert.Error(t, err)
}

func TestUnmarshalWireRegexAndIn(t *testing.T) {
	q, err := UnmarshalWire(map[string]any{
		"name":  map[string]any{"$regex": "^acme-"},
		"score": map[string]any{"$in": []any{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "and", q.Kind())
	kinds := map[string]bool{}
	for _, c := range q.Clauses() {
		kinds[c.Kind()] = true
	}
	assert.True(t, kinds["regex"])
	assert.True(t, kinds["in"])
}

func TestUnmarshalWireExplicitEqMatchesBareValueAndAnd(t *testing.T) {
	bare, err := UnmarshalWire(map[string]any{"status": "active"})
	require.NoError(t, err)

	explicit, err := UnmarshalWire(map[string]any{"status": map[string]any{"$eq": "active"}})
	require.NoError(t, err)
	assert.Equal(t, "eq", explicit.Kind())

	wrapped, err := UnmarshalWire(map[string]any{"$and": []any{map[string]any{"status": "active"}}})
	require.NoError(t, err)

	bareWire, err := bare.MarshalWire()
	require.NoError(t, err)
	explicitWire, err := explicit.MarshalWire()
	require.NoError(t, err)
	wrappedWire, err := wrapped.MarshalWire()
	require.NoError(t, err)

	assert.Equal(t, bareWire, explicitWire)
	assert.Equal(t, map[string]any{"$and": []any{bareWire}}, wrappedWire)
}

func TestEmptyQueryIsZero(t *testing.T) {
	var q Query
	assert.True(t, q.IsZero())
	wire, err := q.MarshalWire()
	require.NoError(t, err)
	assert.Empty(t, wire)
}
