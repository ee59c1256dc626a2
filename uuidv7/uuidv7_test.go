package uuidv7

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsV7(t *testing.T) {
	id := New()
	assert.True(t, IsV7(id))
}

func TestExtractTimestampWithinOneSecond(t *testing.T) {
	before := time.Now()
	id := New()
	ts, err := ExtractTimestamp(id)
	require.NoError(t, err)
	assert.WithinDuration(t, before, ts, time.Second)
}

func TestMonotonicOrdering(t *testing.T) {
	a := New()
	time.Sleep(2 * time.Millisecond)
	b := New()
	assert.Less(t, a, b)
}

func TestPrefixStrippedBeforeValidation(t *testing.T) {
	id := NewPrefixed("doc")
	assert.True(t, IsV7(id))

	ts, err := ExtractTimestamp(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Second)
}

func TestIsV7RejectsGarbage(t *testing.T) {
	assert.False(t, IsV7("not-a-uuid"))
	assert.False(t, IsV7("tag_not-a-uuid"))
}

func TestExtractTimestampRejectsNonV7(t *testing.T) {
	_, err := ExtractTimestamp("00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotV7)
}
