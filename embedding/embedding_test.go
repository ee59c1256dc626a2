package embedding

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	dim      int
	lastText string
	vec      []float32
	err      error
}

func (f *fakeGenerator) Dimension() int { return f.dim }

func (f *fakeGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestJoinTextFieldsPrefixesTopLevelStrings(t *testing.T) {
	text := JoinTextFields(map[string]any{"title": "hello"})
	assert.Equal(t, "title: hello", text)
}

func TestJoinTextFieldsHandlesListsAndNestedDicts(t *testing.T) {
	entity := map[string]any{
		"tags": []any{"a", "b", map[string]any{"text": "c"}},
		"meta": map[string]any{"note": "nested"},
	}
	text := JoinTextFields(entity)
	assert.Contains(t, text, "a")
	assert.Contains(t, text, "b")
	assert.Contains(t, text, "c")
	assert.Contains(t, text, "note: nested")
}

func TestEmbedEntityReturnsZeroVectorWhenNoText(t *testing.T) {
	gen := &fakeGenerator{dim: 4}
	vec, err := EmbedEntity(context.Background(), gen, map[string]any{"count": 5})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, vec)
	assert.Empty(t, gen.lastText)
}

func TestEmbedEntityEmbedsJoinedText(t *testing.T) {
	gen := &fakeGenerator{dim: 3}
	vec, err := EmbedEntity(context.Background(), gen, map[string]any{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "title: hello", gen.lastText)
}

func TestDecodeVectorParsesJSONFloats(t *testing.T) {
	raw, err := json.Marshal([]float64{1.5, -2.25})
	require.NoError(t, err)
	vec, err := decodeVector(raw)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2.25}, vec)
}
