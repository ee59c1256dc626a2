package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordThenVerifyPasswordRoundTrips(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.NoError(t, VerifyPassword(hash, "correct-horse-battery-staple"))
	assert.Error(t, VerifyPassword(hash, "wrong-password"))
}

func TestHashPasswordProducesDistinctSaltsPerCall(t *testing.T) {
	first, err := HashPassword("same-password")
	require.NoError(t, err)
	second, err := HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "bcrypt salts each hash independently")
	assert.NoError(t, VerifyPassword(first, "same-password"))
	assert.NoError(t, VerifyPassword(second, "same-password"))
}

func TestJWTServiceValidatesItsOwnTokens(t *testing.T) {
	svc := NewJWTService("test-signing-secret")

	token, err := svc.GenerateToken("user-42", time.Hour)
	require.NoError(t, err)

	parsed, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", parsed.Subject())
}

func TestJWTServiceRejectsTokenSignedWithAnotherSecret(t *testing.T) {
	issuer := NewJWTService("secret-a")
	verifier := NewJWTService("secret-b")

	token, err := issuer.GenerateToken("user-42", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-signing-secret")

	token, err := svc.GenerateToken("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
