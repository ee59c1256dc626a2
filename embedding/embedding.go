// Package embedding generates vector embeddings from entity text
// fields. The model itself is treated as opaque per spec.md: callers
// provide a Generator and this package only handles dispatch and the
// entity-to-text extraction convention adapters rely on.
package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Generator produces an embedding vector for a text string. The
// concrete implementation (a local model, a remote inference service)
// is deliberately out of scope here.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// JoinTextFields flattens an entity's string/list/dict fields into one
// text blob for embedding, matching the field-prefixed extraction
// convention ("key: value") used across the adapters that embed rows.
// Nested dicts recurse with the same "key: value" prefixing, applied
// to the nested dict's own keys.
func JoinTextFields(entity map[string]any) string {
	return strings.Join(extractParts(entity, true), " ")
}

// EmbedEntity joins an entity's text fields and embeds the result,
// short-circuiting to a zero vector when no text is found rather than
// calling the generator with an empty string.
func EmbedEntity(ctx context.Context, gen Generator, entity map[string]any) ([]float32, error) {
	text := JoinTextFields(entity)
	if strings.TrimSpace(text) == "" {
		return make([]float32, gen.Dimension()), nil
	}
	return gen.Embed(ctx, text)
}

func decodeVector(raw []byte) ([]float32, error) {
	var floats []float64
	if err := json.Unmarshal(raw, &floats); err != nil {
		return nil, fmt.Errorf("embedding: decode vector response: %w", err)
	}
	vec := make([]float32, len(floats))
	for i, f := range floats {
		vec[i] = float32(f)
	}
	return vec, nil
}

func extractParts(data map[string]any, prefixed bool) []string {
	var parts []string
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if prefixed {
				parts = append(parts, fmt.Sprintf("%s: %s", key, v))
			} else {
				parts = append(parts, v)
			}
		case []any:
			for _, item := range v {
				switch it := item.(type) {
				case string:
					parts = append(parts, it)
				case map[string]any:
					if text, ok := it["text"].(string); ok {
						parts = append(parts, text)
					}
				}
			}
		case map[string]any:
			nested := strings.Join(extractParts(v, true), " ")
			if nested != "" {
				parts = append(parts, nested)
			}
		}
	}
	return parts
}
