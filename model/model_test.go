package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntityStampImmutableID(t *testing.T) {
	var e Entity
	e.Stamp()
	id := e.ID
	createdAt := e.CreatedAt

	time.Sleep(2 * time.Millisecond)
	e.Stamp()

	assert.Equal(t, id, e.ID)
	assert.Equal(t, createdAt, e.CreatedAt)
	assert.False(t, e.UpdatedAt.Before(e.CreatedAt))
}

func TestTouchNeverPrecedesCreatedAt(t *testing.T) {
	e := Entity{CreatedAt: time.Now().Add(time.Hour)}
	e.Touch()
	assert.False(t, e.UpdatedAt.Before(e.CreatedAt))
}

func TestPermissionSetAdminImpliesAll(t *testing.T) {
	assert.True(t, PermAdmin.Has(PermRead))
	assert.True(t, PermAdmin.Has(PermDelete))
	assert.False(t, PermRead.Has(PermWrite))
}

func TestACLEntryExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	e := ACLEntry{ExpiresAt: &past}
	assert.True(t, e.Expired(time.Now()))

	future := time.Now().Add(time.Hour)
	e2 := ACLEntry{ExpiresAt: &future}
	assert.False(t, e2.Expired(time.Now()))
}

func TestSensitiveFieldMaskWithUID(t *testing.T) {
	sfm := SensitiveFieldMap{"ssn": "REDACTED_{field}_uid"}
	masked, ok := sfm.Mask("ssn")
	assert.True(t, ok)
	assert.Contains(t, masked, "REDACTED_ssn_")
}

func TestProjectDoesNotMutateSource(t *testing.T) {
	sfm := SensitiveFieldMap{"password": "***"}
	data := map[string]any{"password": "hunter2", "name": "alice"}

	projected := Project(data, sfm)

	assert.Equal(t, "hunter2", data["password"])
	assert.Equal(t, "***", projected["password"])
	assert.Equal(t, "alice", projected["name"])
}

func TestMetadataPrimaryAndSecondaries(t *testing.T) {
	m := NewMetadata("docs", "id", []NamedBinding{
		{Name: "g"}, {Name: "v"}, {Name: "c"},
	}, nil)

	primary, ok := m.Primary()
	assert.True(t, ok)
	assert.Equal(t, "g", primary)
	assert.Equal(t, []string{"v", "c"}, m.Secondaries())
}
