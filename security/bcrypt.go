// Package security implements the cryptographic primitives that back the
// dataops authorization boundary: password hashing for the
// "password_verify" auth directive (secmodel.EvaluateAuthDirectives), and
// the JWT/OIDC token verification secmodel.FromJWT/FromOIDC turn into a
// secmodel.SecurityContext for the Unified CRUD engine's permission checks.
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost factor used when hashing the password
// stored in a model.AuthDirective{Name: "password_verify"} directive.
const DefaultBcryptCost = 10

// HashPassword bcrypt-hashes password at DefaultBcryptCost. The result is
// what an operator stores as an AuthDirective's "hash" param; VerifyPassword
// is its counterpart on the read side, called from
// secmodel.EvaluateAuthDirectives.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a bcrypt hash,
// returning nil only on a match. secmodel.EvaluateAuthDirectives uses this
// to evaluate a "password_verify" directive's hash param against the
// "password" claim in the calling SecurityContext.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return err
	}
	return nil
}
