package security

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCProvider verifies ID tokens issued by an external identity provider,
// the federated counterpart to JWTService's local HMAC tokens.
// secmodel.FromOIDC wraps VerifyIDToken to mint a SecurityContext from the
// verified subject.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
}

// OIDCConfig configures discovery and verification for an OIDCProvider.
type OIDCConfig struct {
	// ProviderURL is the OIDC provider's discovery URL (e.g. "https://accounts.google.com").
	ProviderURL string

	// ClientID is the expected audience of verified ID tokens.
	ClientID string

	// SkipIssuerCheck disables issuer validation (not recommended for production).
	SkipIssuerCheck bool

	// SkipExpiryCheck disables expiration validation (not recommended for production).
	SkipExpiryCheck bool
}

// Claims is the subset of standard OIDC ID token claims secmodel.FromOIDC
// needs to build a SecurityContext.
type Claims struct {
	Subject string `json:"sub"`
}

// NewOIDCProvider discovers the provider at config.ProviderURL and builds a
// verifier scoped to config.ClientID.
func NewOIDCProvider(ctx context.Context, config OIDCConfig) (*OIDCProvider, error) {
	if config.ProviderURL == "" {
		return nil, fmt.Errorf("provider URL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, config.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        config.ClientID,
		SkipIssuerCheck: config.SkipIssuerCheck,
		SkipExpiryCheck: config.SkipExpiryCheck,
	})

	return &OIDCProvider{verifier: verifier}, nil
}

// VerifyIDToken verifies the signature, expiry, issuer, and audience of the
// raw ID token and returns its claims. secmodel.FromOIDC reads Subject off
// the result.
func (p *OIDCProvider) VerifyIDToken(ctx context.Context, token string) (*Claims, error) {
	idToken, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return &claims, nil
}
