package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// AdminVerifier verifies Firebase ID tokens with the Firebase Admin SDK.
type AdminVerifier struct {
	client *fbauth.Client
}

// NewAdminVerifier creates a verifier backed by the app's Auth client.
func NewAdminVerifier(ctx context.Context, app *firebase.App) (*AdminVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth client: %w", err)
	}
	return &AdminVerifier{client: client}, nil
}

// VerifyIDToken validates the token and returns its identity.
func (v *AdminVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	identity := &Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		identity.Name = name
	}
	return identity, nil
}
