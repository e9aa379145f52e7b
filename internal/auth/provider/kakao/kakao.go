package kakao

import (
	"context"
	"errors"
	"fmt"

	"credit-service/internal/auth"
	"credit-service/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const providerName = "kakao"

// Provider implements OAuth + OIDC authentication against Kakao Login.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New initializes a Kakao OIDC provider using discovery.
// issuer is normally https://kauth.kakao.com; clientSecret may be empty
// when the app has client secret disabled.
func New(
	ctx context.Context,
	issuer string,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*Provider, error) {

	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, errors.New("kakao oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init kakao oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile_nickname",
			"account_email",
		},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		verifier:    verifier,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

type claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Nickname      string `json:"nickname"`
}

// Kakao has no real-name claim; only the nickname is available.
func (c claims) identity() (*auth.ProviderIdentity, error) {
	if c.Subject == "" || c.Email == "" {
		return nil, errors.New("kakao id_token missing required claims")
	}

	return &auth.ProviderIdentity{
		Provider:       providerName,
		ProviderUserID: c.Subject,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		Nickname:       c.Nickname,
	}, nil
}

// ExchangeCode exchanges the authorization code and returns a normalized identity.
// This method MUST NOT create users, sessions, or perform linking logic.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.ProviderIdentity, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		logger.Error("kakao token exchange failed", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("kakao token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("kakao did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("kakao id_token verification failed", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("kakao id_token verification failed: %w", err)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("kakao id_token claims parse failed: %w", err)
	}

	logger.Info("kakao oidc verified", map[string]any{
		"issuer":          idToken.Issuer,
		"subject_present": c.Subject != "",
		"email_present":   c.Email != "",
		"nickname":        c.Nickname != "",
		"expiry_unix":     idToken.Expiry.Unix(),
	})

	return c.identity()
}
