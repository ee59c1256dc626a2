package secmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.dataops.dev/model"
)

func TestCheckPermissionOwnerAlwaysAdmin(t *testing.T) {
	entity := &model.SecuredEntity{OwnerID: "u1"}
	ctx := SecurityContext{UserID: "u1"}

	assert.True(t, CheckPermission(ctx, entity, model.PermRead))
	assert.True(t, CheckPermission(ctx, entity, model.PermDelete))
}

func TestCheckPermissionDeniedWithoutACL(t *testing.T) {
	entity := &model.SecuredEntity{OwnerID: "u1"}
	ctx := SecurityContext{UserID: "u2", Roles: []string{"member"}}

	assert.False(t, CheckPermission(ctx, entity, model.PermWrite))
}

func TestCheckPermissionGrantedByACL(t *testing.T) {
	entity := &model.SecuredEntity{
		OwnerID: "u1",
		ACL: []model.ACLEntry{
			{PrincipalID: "u2", Permissions: model.PermRead},
		},
	}
	ctx := SecurityContext{UserID: "u2"}

	assert.True(t, CheckPermission(ctx, entity, model.PermRead))
	assert.False(t, CheckPermission(ctx, entity, model.PermWrite))
}

func TestCheckPermissionIgnoresExpiredACL(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	entity := &model.SecuredEntity{
		OwnerID: "u1",
		ACL: []model.ACLEntry{
			{PrincipalID: "u2", Permissions: model.PermAdmin, ExpiresAt: &past},
		},
	}
	ctx := SecurityContext{UserID: "u2"}

	assert.False(t, CheckPermission(ctx, entity, model.PermRead))
}

func TestCheckPermissionACLAdminImpliesAll(t *testing.T) {
	entity := &model.SecuredEntity{
		OwnerID: "u1",
		ACL: []model.ACLEntry{
			{PrincipalID: "role:editor", Permissions: model.PermAdmin},
		},
	}
	ctx := SecurityContext{UserID: "u2", Roles: []string{"role:editor"}}

	assert.True(t, CheckPermission(ctx, entity, model.PermDelete))
}
