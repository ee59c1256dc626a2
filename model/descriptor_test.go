package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type describedDoc struct {
	SecuredEntity
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

func TestDescribeFieldsFlattensEmbeddedEntityAndMarksRequired(t *testing.T) {
	fields := DescribeFields[describedDoc]()

	byName := map[string]FieldDescriptor{}
	for _, f := range fields {
		byName[f.Name] = f
	}

	id, ok := byName["id"]
	assert.True(t, ok, "expected the embedded Entity.ID to be flattened to \"id\"")
	assert.True(t, id.Required)

	ownerID, ok := byName["owner_id"]
	assert.True(t, ok, "expected SecuredEntity.OwnerID to be flattened to \"owner_id\"")
	assert.True(t, ownerID.Required)

	title, ok := byName["title"]
	assert.True(t, ok)
	assert.True(t, title.Required)

	notes, ok := byName["notes"]
	assert.True(t, ok)
	assert.False(t, notes.Required, "omitempty field should not be marked required")
}
