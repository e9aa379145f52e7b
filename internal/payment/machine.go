package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"credit-service/internal/ledger"
	"credit-service/internal/logger"
	"credit-service/internal/outcome"
)

type Status int

const (
	AwaitingRedirect Status = iota
	Confirming
	Confirmed
	Declined
	Errored
)

func (s Status) String() string {
	switch s {
	case AwaitingRedirect:
		return "awaiting_redirect"
	case Confirming:
		return "confirming"
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	case Errored:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the terminal state of one confirmation.
type Outcome struct {
	Status    Status
	Duplicate bool // transaction already applied or in flight
	Pending   *Pending

	CreditsGranted int
	TotalCredits   int
	Applied        bool // local ledger accepted the new balance

	Err error // *outcome.Error unless Confirmed
}

func (o Outcome) RedirectURL() string {
	if o.Status != Confirmed {
		return outcome.FailureURL(o.Err)
	}
	p := o.Pending
	return outcome.PaymentSuccessURL(p.TransactionID, p.OrderID, p.Amount, o.CreditsGranted, o.TotalCredits)
}

// BillingOutcome is the terminal state of one subscription start.
type BillingOutcome struct {
	Status    Status
	Duplicate bool
	Pending   *Pending

	Plan            string
	PlanName        string
	CreditsGranted  int
	AmountPaid      int
	NextBillingDate string
	Applied         bool

	Err error
}

func (o BillingOutcome) RedirectURL() string {
	if o.Status != Confirmed {
		return outcome.FailureURL(o.Err)
	}
	return outcome.BillingSuccessURL(o.Plan, o.PlanName, o.CreditsGranted, o.AmountPaid, o.NextBillingDate)
}

type claimState int

const (
	inFlight claimState = iota + 1
	applied
)

type claim struct {
	state   claimState
	receipt Outcome
	billing BillingOutcome
}

// Machine confirms gateway transactions. A transaction id is claimed
// before the backend call and released if the call fails, so concurrent
// or repeated deliveries reach the backend at most once per success.
type Machine struct {
	backend Backend
	ledgers *ledger.Registry

	mu     sync.Mutex
	claims map[string]*claim
}

func NewMachine(backend Backend, ledgers *ledger.Registry) *Machine {
	return &Machine{
		backend: backend,
		ledgers: ledgers,
		claims:  make(map[string]*claim),
	}
}

// claim returns nil when the caller now owns tid, or the existing claim.
func (m *Machine) claim(tid string) *claim {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.claims[tid]; ok {
		cp := *c
		return &cp
	}
	m.claims[tid] = &claim{state: inFlight}
	return nil
}

func (m *Machine) release(tid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claims, tid)
}

func (m *Machine) settle(tid string, c claim) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.state = applied
	m.claims[tid] = &c
}

// Confirm runs the one-time payment flow for the browser session sid.
func (m *Machine) Confirm(ctx context.Context, sid string, cb Callback) Outcome {
	const op = "payment.confirm"

	pending, err := cb.Pending()
	if err != nil {
		logger.Warn("payment callback missing fields", map[string]any{
			"tid":   cb.TID,
			"error": err,
		})
		return Outcome{Status: Errored, Err: outcome.New(outcome.MissingFields, op, err)}
	}

	if cb.ResultCode != ResultOK {
		logger.Info("payment declined by gateway", map[string]any{
			"tid":  pending.TransactionID,
			"code": cb.ResultCode,
		})
		e := outcome.New(outcome.PaymentDeclined, op, nil)
		e.Code = cb.ResultCode
		e.Message = cb.ResultMsg
		return Outcome{Status: Declined, Pending: pending, Err: e}
	}

	if prior := m.claim(pending.TransactionID); prior != nil {
		logger.Info("duplicate payment callback ignored", map[string]any{
			"tid":     pending.TransactionID,
			"applied": prior.state == applied,
		})
		if prior.state != applied {
			e := outcome.New(outcome.PaymentPending, op, nil)
			e.Code = "IN_PROGRESS"
			return Outcome{Status: Confirming, Duplicate: true, Pending: pending, Err: e}
		}
		dup := prior.receipt
		dup.Duplicate = true
		dup.Applied = false
		dup.Pending = pending
		return dup
	}

	logger.Info("confirming payment", map[string]any{
		"tid":      pending.TransactionID,
		"order_id": pending.OrderID,
		"user_id":  pending.UserID,
		"amount":   pending.Amount,
		"state":    Confirming.String(),
	})

	paymentKey := pending.AuthToken
	if paymentKey == "" {
		paymentKey = pending.TransactionID
	}

	resp, err := m.backend.Confirm(ctx, ConfirmRequest{
		UserID:        pending.UserID,
		TransactionID: pending.TransactionID,
		PaymentKey:    paymentKey,
		OrderID:       pending.OrderID,
		Amount:        pending.Amount,
	})
	if err != nil {
		m.release(pending.TransactionID)
		logger.Error("payment confirmation failed", map[string]any{
			"tid":   pending.TransactionID,
			"error": err,
		})
		e := outcome.New(outcome.PaymentBackend, op, err)
		var rejected *RejectedError
		if errors.As(err, &rejected) && rejected.Message != "" {
			e.Message = rejected.Message
		}
		return Outcome{Status: Errored, Pending: pending, Err: e}
	}

	if resp.TotalCredits == nil {
		m.release(pending.TransactionID)
		logger.Error("payment confirmation has no total", map[string]any{"tid": pending.TransactionID})
		e := outcome.New(outcome.PaymentBackend, op, errors.New("payment: confirmation without total_credits"))
		return Outcome{Status: Errored, Pending: pending, Err: e}
	}

	// The ticket is taken once the reply is in, so the confirmed total is
	// ordered after any read that was still in flight during the call.
	local, ticket, bound := m.reserve(sid, pending.UserID)

	total := *resp.TotalCredits
	res := Outcome{
		Status:         Confirmed,
		Pending:        pending,
		CreditsGranted: resp.Granted(),
		TotalCredits:   total,
	}

	if bound {
		if identity := local.Snapshot().Identity; identity != nil && identity.ID == pending.UserID {
			res.Applied = local.Set(ticket, *identity, total)
		}
	}

	m.settle(pending.TransactionID, claim{receipt: res})

	logger.Info("payment confirmed", map[string]any{
		"tid":           pending.TransactionID,
		"user_id":       pending.UserID,
		"credits":       res.CreditsGranted,
		"total_credits": total,
		"applied":       res.Applied,
	})

	return res
}

// Subscribe runs the recurring-billing flow. Every failure goes to the
// billing-failed destination.
func (m *Machine) Subscribe(ctx context.Context, sid string, cb BillingCallback) BillingOutcome {
	const op = "payment.subscribe"

	fail := func(code, msg string, err error) BillingOutcome {
		e := outcome.New(outcome.BillingFailed, op, err)
		e.Code = code
		e.Message = msg
		return BillingOutcome{Status: Errored, Err: e}
	}

	if cb.AuthResultCode != ResultOK {
		logger.Info("billing authorization declined", map[string]any{
			"tid":  cb.TID,
			"code": cb.AuthResultCode,
		})
		out := fail(cb.AuthResultCode, cb.AuthResultMsg, nil)
		out.Status = Declined
		return out
	}

	pending, err := cb.Pending()
	if err != nil {
		logger.Warn("billing callback missing fields", map[string]any{
			"tid":   cb.TID,
			"error": err,
		})
		return fail("MISSING_FIELDS", outcome.MissingFields.Message(), err)
	}

	if prior := m.claim(pending.TransactionID); prior != nil {
		if prior.state != applied {
			return fail("IN_PROGRESS", "", errors.New("subscription already in progress"))
		}
		dup := prior.billing
		dup.Duplicate = true
		dup.Applied = false
		dup.Pending = pending
		return dup
	}

	resp, err := m.backend.Subscribe(ctx, SubscribeRequest{
		UserID:         pending.UserID,
		Plan:           pending.Plan,
		TID:            pending.TransactionID,
		OrderID:        pending.OrderID,
		IsAnnual:       pending.Annual,
		AuthResultCode: cb.AuthResultCode,
	})
	if err != nil {
		m.release(pending.TransactionID)
		logger.Error("subscription failed", map[string]any{
			"tid":   pending.TransactionID,
			"error": err,
		})
		msg := ""
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			msg = rejected.Message
		}
		out := fail("SUBSCRIBE_FAILED", msg, err)
		out.Pending = pending
		return out
	}

	res := BillingOutcome{
		Status:          Confirmed,
		Pending:         pending,
		Plan:            resp.Plan,
		PlanName:        resp.PlanName,
		CreditsGranted:  resp.CreditsGranted,
		AmountPaid:      resp.AmountPaid,
		NextBillingDate: resp.NextBillingDate,
	}

	// The subscribe reply has no total, so the grant is applied as a delta.
	if local, ok := m.ledgers.Peek(sid); ok && resp.CreditsGranted != 0 {
		if _, err := local.Adjust(pending.UserID, resp.CreditsGranted); err == nil {
			res.Applied = true
		} else {
			logger.Debug("billing grant not applied locally", map[string]any{
				"tid":   pending.TransactionID,
				"error": err,
			})
		}
	}

	m.settle(pending.TransactionID, claim{billing: res})

	logger.Info("subscription started", map[string]any{
		"tid":     pending.TransactionID,
		"user_id": pending.UserID,
		"plan":    res.Plan,
		"credits": res.CreditsGranted,
		"applied": res.Applied,
	})

	return res
}

// reserve takes a ledger ticket for the session when it exists.
func (m *Machine) reserve(sid, userID string) (*ledger.Synchronizer, ledger.Ticket, bool) {
	if sid == "" {
		return nil, ledger.Ticket{}, false
	}
	local, ok := m.ledgers.Peek(sid)
	if !ok {
		return nil, ledger.Ticket{}, false
	}
	return local, local.Reserve(userID), true
}
