package secmodel

import (
	"go.dataops.dev/model"
	"go.dataops.dev/security"
)

// EvaluateAuthDirectives runs every AuthRule attached to a secured entity
// against the calling context, in addition to the ACL check in
// CheckPermission. Directives are a model-declared escape hatch for
// authorization rules an ACL entry cannot express; the only directive
// kind implemented here is "password_verify", checking a bcrypt hash
// carried in the directive's params against a credential supplied in the
// context's claims — every other directive name is accepted but ignored,
// since the spec leaves directive interpretation to the caller.
func EvaluateAuthDirectives(ctx SecurityContext, directives []model.AuthDirective) bool {
	for _, d := range directives {
		if d.Name != "password_verify" {
			continue
		}
		hash, _ := d.Params["hash"].(string)
		claim, _ := ctx.Claims["password"].(string)
		if hash == "" || claim == "" {
			return false
		}
		if err := security.VerifyPassword(hash, claim); err != nil {
			return false
		}
	}
	return true
}
