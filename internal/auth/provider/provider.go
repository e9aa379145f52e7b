// Package provider adapts external OIDC identity providers to one shape.
package provider

import (
	"context"

	"credit-service/internal/auth"
)

// OAuthProvider is one sign-in option on the login page. It reports what
// the provider asserts about the user; mapping that to an internal user
// and opening a session happen elsewhere.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.ProviderIdentity, error)
}
