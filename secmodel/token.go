package secmodel

import (
	"context"
	"fmt"

	"go.dataops.dev/security"
)

// FromJWT builds a SecurityContext from a bearer token validated by a
// security.JWTService, the adapter SPEC_FULL.md's security section
// describes as the boundary between a future RPC transport and the
// Unified CRUD engine's permission checks. "roles" and "groups" custom
// claims, when present as string slices, populate the context's
// principal set beyond the subject.
func FromJWT(svc *security.JWTService, tokenString string) (SecurityContext, error) {
	tok, err := svc.ValidateToken(tokenString)
	if err != nil {
		return SecurityContext{}, fmt.Errorf("secmodel: validate token: %w", err)
	}

	ctx := SecurityContext{UserID: tok.Subject()}

	if raw, ok := tok.Get("roles"); ok {
		ctx.Roles = toStringSlice(raw)
	}
	if raw, ok := tok.Get("groups"); ok {
		ctx.Groups = toStringSlice(raw)
	}
	return ctx, nil
}

// FromOIDC builds a SecurityContext from an OIDC ID token, using the
// subject as UserID; "roles"/"groups" claims are not read, so the
// context's Roles and Groups stay empty. Kept alongside FromJWT so the teacher's
// coreos/go-oidc dependency backs the same SecurityContext boundary as
// the HMAC path, for deployments that federate to an external IdP.
func FromOIDC(ctx context.Context, provider *security.OIDCProvider, idToken string) (SecurityContext, error) {
	claims, err := provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		return SecurityContext{}, fmt.Errorf("secmodel: verify id token: %w", err)
	}
	return SecurityContext{UserID: claims.Subject}, nil
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
