// Package ledger holds the process-local credit balance of a browser
// session. The Synchronizer is the only writer; every other component
// reads snapshots and submits writes through Set, Adjust and Clear.
package ledger

import (
	"errors"
	"sync"

	"credit-service/internal/auth"
	"credit-service/internal/logger"
)

var (
	ErrUnknownBalance  = errors.New("ledger: balance unknown")
	ErrStaleIdentity   = errors.New("ledger: identity is not current")
	ErrNegativeBalance = errors.New("ledger: balance would go negative")
)

// Ticket orders a write. A read-then-set flow reserves it before its read,
// so an older read cannot overwrite a newer result whatever order the
// flows finish in. A flow whose value is authoritative on arrival reserves
// it when the value arrives.
type Ticket struct {
	IdentityID string
	Seq        uint64
	epoch      uint64
}

// LocalSession is an immutable snapshot of the ledger.
type LocalSession struct {
	Identity *auth.Identity // nil when signed out
	Balance  int
	Known    bool // false means "unknown", not zero
	Seq      uint64
}

func (s LocalSession) SignedIn() bool {
	return s.Identity != nil
}

type Synchronizer struct {
	mu sync.Mutex

	identity *auth.Identity
	balance  int
	known    bool

	next    uint64            // last issued sequence number
	last    uint64            // sequence of the last applied write
	applied map[string]uint64 // per identity
	epoch   uint64            // advanced by Clear
	closed  bool              // released; every later write is discarded
}

func New() *Synchronizer {
	return &Synchronizer{applied: make(map[string]uint64)}
}

// Reserve issues the next sequence number for identityID.
func (s *Synchronizer) Reserve(identityID string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	return Ticket{IdentityID: identityID, Seq: s.next, epoch: s.epoch}
}

// Set overwrites the balance with an authoritative value. It is dropped
// when the ticket predates a sign-out, is not newer than the last write
// applied for the identity, or the session belongs to someone else.
func (s *Synchronizer) Set(t Ticket, identity auth.Identity, balance int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason := ""
	switch {
	case t.IdentityID == "" || t.IdentityID != identity.ID:
		reason = "ticket identity mismatch"
	case balance < 0:
		reason = "negative balance"
	case s.closed:
		reason = "session released"
	case t.epoch != s.epoch:
		reason = "superseded by sign-out"
	case s.identity != nil && s.identity.ID != identity.ID:
		reason = "different identity bound"
	case t.Seq <= s.applied[identity.ID]:
		reason = "stale sequence"
	}

	if reason != "" {
		logger.Debug("ledger set discarded", map[string]any{
			"identity_id": identity.ID,
			"seq":         t.Seq,
			"last":        s.applied[identity.ID],
			"reason":      reason,
		})
		return false
	}

	id := identity
	s.identity = &id
	s.balance = balance
	s.known = true
	s.applied[identity.ID] = t.Seq
	s.last = t.Seq

	return true
}

// Adjust applies a just-confirmed delta to the current balance and returns
// the new balance. Callers guarantee a delta is applied once per
// transaction. In-flight tickets reserved before the adjustment lose.
func (s *Synchronizer) Adjust(identityID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.identity == nil || s.identity.ID != identityID {
		return 0, ErrStaleIdentity
	}
	if !s.known {
		return 0, ErrUnknownBalance
	}
	if s.balance+delta < 0 {
		return s.balance, ErrNegativeBalance
	}

	s.next++
	s.balance += delta
	s.applied[identityID] = s.next
	s.last = s.next

	return s.balance, nil
}

// Clear forgets the identity and balance. The balance becomes unknown
// until the next establishment; writes from flows started before Clear
// are discarded.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.balance = 0
	s.known = false
	s.applied = make(map[string]uint64)
	s.epoch++
}

// close clears the ledger for good.
func (s *Synchronizer) close() {
	s.Clear()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Synchronizer) Snapshot() LocalSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LocalSession{
		Balance: s.balance,
		Known:   s.known,
		Seq:     s.last,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Current reports whether identityID is the identity bound to the session.
func (s *Synchronizer) Current(identityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.identity != nil && s.identity.ID == identityID
}
