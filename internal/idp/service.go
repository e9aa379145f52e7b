package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/auth"
	"credit-service/internal/auth/provider"
	"credit-service/internal/auth/resolver"
	"credit-service/internal/auth/token"
	"credit-service/internal/logger"
	"credit-service/internal/session"
)

// Credentials is the password side of sign-in.
type Credentials interface {
	Register(ctx context.Context, email, password, fullName string) (string, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Identity, error)
}

type Options struct {
	Providers   *provider.Registry
	Resolver    resolver.Resolver
	Credentials Credentials
	Sessions    session.Store
	Tokens      *token.Issuer
	SessionTTL  time.Duration
	Events      *Broadcaster
}

// Service implements Client over OIDC providers, password credentials,
// a session store and signed access tokens.
type Service struct {
	providers   *provider.Registry
	resolver    resolver.Resolver
	credentials Credentials
	sessions    session.Store
	tokens      *token.Issuer
	ttl         time.Duration
	events      *Broadcaster
	now         func() time.Time
}

func NewService(opts Options) *Service {
	events := opts.Events
	if events == nil {
		events = NewBroadcaster()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		providers:   opts.Providers,
		resolver:    opts.Resolver,
		credentials: opts.Credentials,
		sessions:    opts.Sessions,
		tokens:      opts.Tokens,
		ttl:         ttl,
		events:      events,
		now:         time.Now,
	}
}

var _ Client = (*Service)(nil)

func (s *Service) GetSession(ctx context.Context, ref SessionRef) (*auth.Session, error) {
	sid := ref.SID

	// A forwarded access token names its own session and wins over the cookie.
	if ref.AccessToken != "" {
		claims, err := s.tokens.Parse(ref.AccessToken)
		if err != nil {
			logger.Debug("access token rejected", map[string]any{"error": err})
			return nil, nil
		}
		sid = claims.SessionID
	}

	if sid == "" {
		return nil, nil
	}

	stored, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("idp: load session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	if !s.now().Before(stored.ExpiresAt) {
		s.expire(ctx, sid)
		return nil, nil
	}

	return s.present(stored)
}

func (s *Service) ExchangeCodeForSession(ctx context.Context, grant CodeGrant) (*auth.Session, error) {
	if grant.Code == "" {
		return nil, ErrMissingCode
	}
	if grant.Verifier == "" {
		return nil, ErrMissingVerifier
	}

	p, err := s.providers.Get(grant.Provider)
	if err != nil {
		return nil, err
	}

	external, err := p.ExchangeCode(ctx, grant.Code, grant.Verifier)
	if err != nil {
		return nil, fmt.Errorf("idp: exchange code: %w", err)
	}

	identity, err := s.resolver.Resolve(ctx, external)
	if err != nil {
		return nil, fmt.Errorf("idp: resolve identity: %w", err)
	}

	return s.open(ctx, *identity, grant.Provider)
}

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	identity, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, *identity, "password")
}

func (s *Service) SignUp(ctx context.Context, email, password, name string) (*auth.Session, error) {
	userID, err := s.credentials.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}

	return s.open(ctx, auth.Identity{
		ID:       userID,
		Email:    email,
		FullName: name,
	}, "password")
}

func (s *Service) SignInWithProvider(ctx context.Context, name, state, challenge string) (string, error) {
	p, err := s.providers.Get(name)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state, challenge), nil
}

// SignOut deletes the stored session and announces SIGNED_OUT even when
// the session was already gone, so local state is always released.
func (s *Service) SignOut(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}

	err := s.sessions.Delete(ctx, sid)

	logger.Info("signed out", map[string]any{"session_id": sid})
	s.events.Publish(StateChange{Event: EventSignedOut, SID: sid})

	if err != nil {
		return fmt.Errorf("idp: delete session: %w", err)
	}
	return nil
}

// expire drops a session found past its expiry and announces it as
// SIGNED_OUT so its local state is released.
func (s *Service) expire(ctx context.Context, sid string) {
	if err := s.sessions.Delete(ctx, sid); err != nil {
		logger.Warn("expired session not deleted", map[string]any{"session_id": sid, "error": err})
	}
	logger.Info("session expired", map[string]any{"session_id": sid})
	s.events.Publish(StateChange{Event: EventSignedOut, SID: sid})
}

// Refresh slides the session's expiry forward and mints a new token.
func (s *Service) Refresh(ctx context.Context, sid string) (*auth.Session, error) {
	stored, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("idp: load session: %w", err)
	}
	if stored == nil {
		return nil, ErrNoSession
	}
	if !s.now().Before(stored.ExpiresAt) {
		s.expire(ctx, sid)
		return nil, ErrNoSession
	}

	stored.ExpiresAt = s.now().Add(s.ttl)
	if err := s.sessions.Update(ctx, *stored); err != nil {
		return nil, fmt.Errorf("idp: update session: %w", err)
	}

	sess, err := s.present(stored)
	if err != nil {
		return nil, err
	}

	s.events.Publish(StateChange{Event: EventTokenRefreshed, SID: sid, Session: sess})
	return sess, nil
}

func (s *Service) OnAuthStateChange(fn Listener) Subscription {
	return s.events.OnAuthStateChange(fn)
}

func (s *Service) open(ctx context.Context, identity auth.Identity, method string) (*auth.Session, error) {
	if identity.ID == "" {
		return nil, errors.New("idp: identity has no id")
	}

	sid, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	stored := session.Session{
		SessionID: sid,
		UserID:    identity.ID,
		Email:     identity.Email,
		FullName:  identity.FullName,
		Nickname:  identity.Nickname,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.sessions.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("idp: persist session: %w", err)
	}

	sess, err := s.present(&stored)
	if err != nil {
		return nil, err
	}

	logger.Info("signed in", map[string]any{
		"user_id":    identity.ID,
		"session_id": sid,
		"method":     method,
	})
	s.events.Publish(StateChange{Event: EventSignedIn, SID: sid, Session: sess})

	return sess, nil
}

func (s *Service) present(stored *session.Session) (*auth.Session, error) {
	accessToken, err := s.tokens.Mint(stored.UserID, stored.SessionID, stored.Email, stored.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &auth.Session{
		ID:          stored.SessionID,
		AccessToken: accessToken,
		Identity: auth.Identity{
			ID:       stored.UserID,
			Email:    stored.Email,
			FullName: stored.FullName,
			Nickname: stored.Nickname,
		},
		ExpiresAt: stored.ExpiresAt,
	}, nil
}
