// Package account joins an established session to its profile and the
// session's credit ledger.
package account

import (
	"context"
	"errors"

	"credit-service/internal/auth"
	"credit-service/internal/ledger"
	"credit-service/internal/logger"
	"credit-service/internal/profile"
)

type Provisioner interface {
	Provision(ctx context.Context, identity auth.Identity) (*profile.Result, error)
}

// Activation is what one activation observed. Applied is false when a
// newer write or a sign-out superseded this one.
type Activation struct {
	Profile  *profile.Profile
	Created  bool
	Applied  bool
	Snapshot ledger.LocalSession
}

// Activator provisions the profile of a session's identity and publishes
// its balance to the session's ledger. It is shared by the redirect
// callback, password sign-in, the auth listener and the initial page load,
// any of which may run it for the same session at the same time.
type Activator struct {
	ledgers  *ledger.Registry
	profiles Provisioner
}

func NewActivator(ledgers *ledger.Registry, profiles Provisioner) *Activator {
	return &Activator{ledgers: ledgers, profiles: profiles}
}

func (a *Activator) Activate(ctx context.Context, sess *auth.Session) (*Activation, error) {
	if sess == nil || sess.ID == "" || sess.Identity.ID == "" {
		return nil, errors.New("account: session has no identity")
	}

	sync := a.ledgers.For(sess.ID)
	ticket := sync.Reserve(sess.Identity.ID)

	res, err := a.profiles.Provision(ctx, sess.Identity)
	if err != nil {
		logger.Error("profile provisioning failed", map[string]any{
			"user_id":    sess.Identity.ID,
			"session_id": sess.ID,
			"error":      err,
		})
		return nil, err
	}

	applied := sync.Set(ticket, sess.Identity, res.Profile.Credits)

	return &Activation{
		Profile:  res.Profile,
		Created:  res.Created,
		Applied:  applied,
		Snapshot: sync.Snapshot(),
	}, nil
}

// Release drops the local state of a signed-out session.
func (a *Activator) Release(sid string) {
	a.ledgers.Release(sid)
}
