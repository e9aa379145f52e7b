package profile

import (
	"context"
	"errors"
	"time"
)

// SignupBonus is the one-time credit grant on first profile creation.
const SignupBonus = 5

type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

var (
	ErrNotFound = errors.New("profile: not found")
	ErrConflict = errors.New("profile: already exists")
)

// Profile is the application's record for an identity. ID equals the
// identity id.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Credits   int       `db:"credits" json:"credits"`
	Tier      Tier      `db:"tier" json:"tier"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store is the profile persistence contract. GetByID returns ErrNotFound
// only when the row does not exist; any other error is transient. Insert
// returns ErrConflict when a profile with the same id already exists.
type Store interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	Insert(ctx context.Context, p *Profile) error
}
