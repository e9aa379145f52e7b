package profile

import (
	"context"
	"errors"

	"credit-service/internal/auth"
	"credit-service/internal/logger"
	"credit-service/internal/outcome"
)

// Result of provisioning. Created is true only for the call whose insert
// created the profile, so the signup bonus is announced once.
type Result struct {
	Profile *Profile
	Created bool
}

// Provisioner guarantees one profile per identity. Lookup and insert are
// separate store calls; a lost insert race is resolved by re-reading the
// winner's row.
type Provisioner struct {
	store Store
}

func NewProvisioner(store Store) *Provisioner {
	return &Provisioner{store: store}
}

func (p *Provisioner) Provision(ctx context.Context, identity auth.Identity) (*Result, error) {
	const op = "profile.provision"

	if identity.ID == "" {
		return nil, outcome.New(outcome.ProfileTransient, op, errors.New("identity id is empty"))
	}

	existing, err := p.store.GetByID(ctx, identity.ID)
	if err == nil {
		return &Result{Profile: existing}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, outcome.New(outcome.ProfileTransient, op, err)
	}

	fresh := &Profile{
		ID:      identity.ID,
		Email:   identity.Email,
		Name:    identity.DisplayName(),
		Credits: SignupBonus,
		Tier:    TierFree,
	}

	err = p.store.Insert(ctx, fresh)
	switch {
	case err == nil:
		logger.Info("signup bonus granted", map[string]any{
			"user_id": identity.ID,
			"credits": SignupBonus,
		})
		return &Result{Profile: fresh, Created: true}, nil

	case errors.Is(err, ErrConflict):
		logger.Info("profile created concurrently, re-reading", map[string]any{
			"user_id": identity.ID,
		})

		winner, err := p.store.GetByID(ctx, identity.ID)
		if err != nil {
			return nil, outcome.New(outcome.ProfileTransient, op, err)
		}
		return &Result{Profile: winner}, nil

	default:
		return nil, outcome.New(outcome.ProfileTransient, op, err)
	}
}
