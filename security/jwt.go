package security

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTService signs and validates the bearer tokens secmodel.FromJWT turns
// into a SecurityContext. Tokens are HMAC SHA-256 (HS256), with the
// principal carried as the standard "sub" claim and optional "roles"/
// "groups" claims read back by FromJWT into the context's principal set.
type JWTService struct {
	secret []byte
}

// NewJWTService builds a JWTService signing and verifying with secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// GenerateToken signs a token whose subject is userID, valid for expiration.
func (j *JWTService) GenerateToken(userID string, expiration time.Duration) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(expiration)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, j.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// ValidateToken verifies the signature and expiration of tokenString and
// returns the parsed token. secmodel.FromJWT reads Subject and the
// "roles"/"groups" claims off the result.
func (j *JWTService) ValidateToken(tokenString string) (jwt.Token, error) {
	token, err := jwt.Parse([]byte(tokenString), jwt.WithKey(jwa.HS256, j.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return token, nil
}
