// Package establish turns an identity-provider redirect into an
// established session, or a single failure reason.
package establish

import (
	"context"
	"errors"
	"fmt"

	"credit-service/internal/auth"
	"credit-service/internal/idp"
	"credit-service/internal/logger"
	"credit-service/internal/outcome"
)

type State int

const (
	Idle State = iota
	Resolving
	Established
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Established:
		return "established"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Redirect is everything the browser brought back from the provider, plus
// the artifacts it already held.
type Redirect struct {
	Provider      string
	Code          string
	CodeVerifier  string
	StateValid    bool   // OAuth state matched the cookie
	ProviderError string // "error" query parameter, if any
	AccessToken   string // forwarded from a token link
	StoredSID     string // session cookie
}

type Result struct {
	State   State
	Session *auth.Session
	Err     error // *outcome.Error when Failed
}

func (r Result) Reason() outcome.Kind {
	if r.State != Failed {
		return ""
	}
	return outcome.KindOf(r.Err)
}

// Sessions is the part of the identity client establishment needs.
type Sessions interface {
	ExchangeCodeForSession(ctx context.Context, grant idp.CodeGrant) (*auth.Session, error)
	GetSession(ctx context.Context, ref idp.SessionRef) (*auth.Session, error)
}

// Machine runs one establishment per Resolve call. It never touches
// profiles or the ledger and never retries.
type Machine struct {
	sessions Sessions
}

func NewMachine(sessions Sessions) *Machine {
	return &Machine{sessions: sessions}
}

var errNoArtifacts = errors.New("no session artifacts")

func (m *Machine) Resolve(ctx context.Context, r Redirect) Result {
	const op = "establish.resolve"

	logger.Debug("establishing session", map[string]any{
		"provider":  r.Provider,
		"state":     Resolving.String(),
		"has_code":  r.Code != "",
		"has_token": r.AccessToken != "",
	})

	// What to report if the stored-session fallback finds nothing.
	failKind, cause := outcome.NoSession, errNoArtifacts

	switch {
	case r.ProviderError != "":
		failKind, cause = outcome.AuthFailed, fmt.Errorf("provider returned %q", r.ProviderError)

	case r.Code != "" && !r.StateValid:
		failKind, cause = outcome.CallbackFailed, errors.New("oauth state mismatch")

	case r.Code != "":
		sess, err := m.sessions.ExchangeCodeForSession(ctx, idp.CodeGrant{
			Provider: r.Provider,
			Code:     r.Code,
			Verifier: r.CodeVerifier,
		})
		if err == nil && sess != nil {
			return established(sess)
		}
		if err == nil {
			err = errors.New("exchange returned no session")
		}
		logger.Warn("code exchange failed, falling back to stored session", map[string]any{
			"provider": r.Provider,
			"error":    err,
		})
		failKind, cause = outcome.AuthFailed, err
	}

	sess, err := m.sessions.GetSession(ctx, idp.SessionRef{
		SID:         r.StoredSID,
		AccessToken: r.AccessToken,
	})
	if err != nil {
		return failed(outcome.New(outcome.CallbackFailed, op, err))
	}
	if sess != nil {
		return established(sess)
	}

	return failed(outcome.New(failKind, op, cause))
}

func established(sess *auth.Session) Result {
	logger.Info("session established", map[string]any{
		"user_id":    sess.Identity.ID,
		"session_id": sess.ID,
	})
	return Result{State: Established, Session: sess}
}

func failed(err *outcome.Error) Result {
	logger.Warn("session establishment failed", map[string]any{
		"reason": string(err.Kind),
		"error":  err.Err,
	})
	return Result{State: Failed, Err: err}
}
