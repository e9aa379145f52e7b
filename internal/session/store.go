package session

import (
	"context"
	"time"
)

// Session is the stored form of an established login.
// It carries the identity snapshot taken at sign-in so lookups
// do not need to reach the user tables.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"` // references users.id
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry time
}

// Store defines how sessions are stored and retrieved.
// Get returns nil, nil when the session does not exist.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
