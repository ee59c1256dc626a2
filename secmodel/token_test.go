package secmodel

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dataops.dev/security"
)

func TestFromJWTPopulatesUserIDFromSubject(t *testing.T) {
	svc := security.NewJWTService("test-secret")
	token, err := svc.GenerateToken("user-7", time.Hour)
	require.NoError(t, err)

	ctx, err := FromJWT(svc, token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", ctx.UserID)
	assert.Empty(t, ctx.Roles)
	assert.Empty(t, ctx.Groups)
}

func TestFromJWTRejectsInvalidToken(t *testing.T) {
	svc := security.NewJWTService("test-secret")

	_, err := FromJWT(svc, "not-a-jwt")
	assert.Error(t, err)
}

func TestFromJWTReadsRolesAndGroupsClaims(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.NewBuilder().
		Subject("user-9").
		Claim("roles", []string{"admin", "editor"}).
		Claim("groups", []string{"eng"}).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)

	ctx, err := FromJWT(security.NewJWTService("test-secret"), string(signed))
	require.NoError(t, err)
	assert.Equal(t, "user-9", ctx.UserID)
	assert.Equal(t, []string{"admin", "editor"}, ctx.Roles)
	assert.Equal(t, []string{"eng"}, ctx.Groups)
}

func TestToStringSliceAcceptsJSONDecodedAndNativeSlices(t *testing.T) {
	assert.Equal(t, []string{"admin", "member"}, toStringSlice([]any{"admin", "member"}))
	assert.Equal(t, []string{"admin"}, toStringSlice([]string{"admin"}))
	assert.Nil(t, toStringSlice(42))
}
