package filedao

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.dataops.dev/dao"
)

func TestObjectKeyNamespacesByCollection(t *testing.T) {
	a := NewAdapter(Config{Collection: "widgets"})
	assert.Equal(t, "widgets/abc.json", a.objectKey("abc"))
}

func TestCloneEntityCopiesFields(t *testing.T) {
	src := dao.Entity{"name": "widget-1"}
	clone := cloneEntity(src)
	clone["name"] = "widget-2"
	assert.Equal(t, "widget-1", src["name"])
	assert.Equal(t, "widget-2", clone["name"])
}
