package secmodel

import (
	"time"

	"go.dataops.dev/model"
)

// CheckPermission implements the invariants of spec.md §3/§8: the owner
// always has effective ADMIN; otherwise a non-expired ACL entry whose
// principal is in the context's principal set, and which grants either the
// requested permission or ADMIN, authorizes the operation.
func CheckPermission(ctx SecurityContext, entity *model.SecuredEntity, perm model.PermissionSet) bool {
	if entity.OwnerID != "" && ctx.hasPrincipal(entity.OwnerID) {
		return true
	}
	now := time.Now()
	for _, acl := range entity.ACL {
		if acl.Expired(now) {
			continue
		}
		if !ctx.hasPrincipal(acl.PrincipalID) {
			continue
		}
		if acl.Permissions.Has(perm) {
			return true
		}
	}
	return false
}
