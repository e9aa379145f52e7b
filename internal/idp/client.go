// Package idp is the identity client used by the rest of the service.
// It establishes, looks up and ends sessions, and announces every
// identity-state transition to subscribers.
package idp

import (
	"context"
	"errors"

	"credit-service/internal/auth"
)

var (
	ErrNoSession       = errors.New("idp: no session")
	ErrMissingCode     = errors.New("idp: authorization code is empty")
	ErrMissingVerifier = errors.New("idp: pkce verifier is empty")
)

// SessionRef carries whatever artifacts a caller has for finding the
// current session. Either field may be empty.
type SessionRef struct {
	SID         string
	AccessToken string
}

// CodeGrant is an OAuth authorization-code redirect to be exchanged.
type CodeGrant struct {
	Provider string
	Code     string
	Verifier string
}

type Client interface {
	// GetSession returns nil, nil when no live session matches ref.
	GetSession(ctx context.Context, ref SessionRef) (*auth.Session, error)
	ExchangeCodeForSession(ctx context.Context, grant CodeGrant) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password, name string) (*auth.Session, error)
	// SignInWithProvider returns the provider's authorization URL.
	SignInWithProvider(ctx context.Context, provider, state, challenge string) (string, error)
	SignOut(ctx context.Context, sid string) error
	Refresh(ctx context.Context, sid string) (*auth.Session, error)
	OnAuthStateChange(fn Listener) Subscription
}
