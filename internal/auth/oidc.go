package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// Identity is the verified subject of a Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// IdentityVerifier verifies Firebase ID tokens.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error)
}

// OIDCClaims represents the claims from an ID token.
type OIDCClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// OIDCVerifier verifies Firebase ID tokens as plain OIDC tokens: issuer
// https://securetoken.google.com/<project>, audience <project>, signed by
// Google's securetoken keys. It needs no service account.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier creates a verifier for the given Firebase project. Signing
// keys are fetched lazily and cached by go-oidc.
func NewOIDCVerifier(ctx context.Context, projectID string) (*OIDCVerifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}
	keySet := oidc.NewRemoteKeySet(ctx, firebaseJWKSURL)
	return NewOIDCVerifierWithKeySet(firebaseIssuerPrefix+projectID, projectID, keySet), nil
}

// NewOIDCVerifierWithKeySet creates a verifier for an explicit issuer and key
// set.
func NewOIDCVerifierWithKeySet(issuer, clientID string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID: clientID,
		}),
	}
}

// VerifyIDToken validates the token and returns its identity.
func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("subject claim is required")
	}

	return &Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
