package secmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dataops.dev/model"
	"go.dataops.dev/security"
)

func TestEvaluateAuthDirectivesNoneAlwaysPasses(t *testing.T) {
	assert.True(t, EvaluateAuthDirectives(SecurityContext{}, nil))
}

func TestEvaluateAuthDirectivesIgnoresUnknownDirectiveNames(t *testing.T) {
	directives := []model.AuthDirective{{Name: "mfa_required", Params: map[string]any{}}}
	assert.True(t, EvaluateAuthDirectives(SecurityContext{}, directives))
}

func TestEvaluateAuthDirectivesPasswordVerifyGrantsOnMatch(t *testing.T) {
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)

	directives := []model.AuthDirective{
		{Name: "password_verify", Params: map[string]any{"hash": hash}},
	}
	ctx := SecurityContext{UserID: "u1", Claims: map[string]any{"password": "hunter2"}}

	assert.True(t, EvaluateAuthDirectives(ctx, directives))
}

func TestEvaluateAuthDirectivesPasswordVerifyDeniesOnMismatch(t *testing.T) {
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)

	directives := []model.AuthDirective{
		{Name: "password_verify", Params: map[string]any{"hash": hash}},
	}
	ctx := SecurityContext{UserID: "u1", Claims: map[string]any{"password": "wrong-guess"}}

	assert.False(t, EvaluateAuthDirectives(ctx, directives))
}

func TestEvaluateAuthDirectivesPasswordVerifyDeniesWhenClaimMissing(t *testing.T) {
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)

	directives := []model.AuthDirective{
		{Name: "password_verify", Params: map[string]any{"hash": hash}},
	}
	ctx := SecurityContext{UserID: "u1"}

	assert.False(t, EvaluateAuthDirectives(ctx, directives))
}
