// Package secmodel implements the security model from spec.md §3/§8:
// security contexts, permission checking against a SecuredEntity's ACL,
// and ownership short-circuiting.
package secmodel

// SecurityContext carries the caller identity a permission check is
// evaluated against.
type SecurityContext struct {
	UserID   string
	Roles    []string
	Groups   []string
	Claims   map[string]any
	SessionID string
	IP        string
	DeviceID  string
}

// PrincipalIDs is the context's principal set: the union of its user id,
// roles, and groups, used for ACL matching (spec.md §3).
func (c SecurityContext) PrincipalIDs() []string {
	ids := make([]string, 0, 1+len(c.Roles)+len(c.Groups))
	if c.UserID != "" {
		ids = append(ids, c.UserID)
	}
	ids = append(ids, c.Roles...)
	ids = append(ids, c.Groups...)
	return ids
}

func (c SecurityContext) hasPrincipal(id string) bool {
	for _, p := range c.PrincipalIDs() {
		if p == id {
			return true
		}
	}
	return false
}
