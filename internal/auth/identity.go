package auth

import (
	"strings"
	"time"
)

// ProviderIdentity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type ProviderIdentity struct {
	Provider       string // e.g. "google", "kakao"
	ProviderUserID string // provider-scoped unique user identifier (sub)
	Email          string // email returned by provider
	EmailVerified  bool   // whether provider asserts email ownership
	FullName       string // "name" claim, may be empty
	Nickname       string // "nickname" / "preferred_username" claim, may be empty
}

// Identity is the authenticated principal. ID is the internal users.id the
// provider subject resolved to; it is stable across providers.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// DisplayName picks the richest available name:
// full name, then nickname, then the local part of the email.
func (i Identity) DisplayName() string {
	if n := strings.TrimSpace(i.FullName); n != "" {
		return n
	}
	if n := strings.TrimSpace(i.Nickname); n != "" {
		return n
	}
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// Session is an established login as seen by the rest of the service.
type Session struct {
	ID          string    // opaque session id, carried by the session cookie
	AccessToken string    // signed bearer token bound to ID
	Identity    Identity  //
	ExpiresAt   time.Time // absolute expiry
}
