// Package outcome is the error taxonomy shared by the session, profile and
// payment flows, and the mapping from each failure kind to the single
// browser destination and message it produces.
package outcome

import (
	"errors"
	"fmt"
)

type Kind string

const (
	AuthFailed       Kind = "auth_failed"
	CallbackFailed   Kind = "callback_failed"
	NoSession        Kind = "no_session"
	ProfileTransient Kind = "profile_unavailable"
	ProfileConflict  Kind = "profile_conflict"
	PaymentDeclined  Kind = "payment_declined"
	MissingFields    Kind = "missing_fields"
	PaymentBackend   Kind = "payment_backend_error"
	PaymentPending   Kind = "payment_pending"
	BillingFailed    Kind = "billing_failed"
	Unknown          Kind = "unknown"
)

var messages = map[Kind]string{
	AuthFailed:       "Sign-in could not be completed. Please try again.",
	CallbackFailed:   "The sign-in response was invalid. Please start again.",
	NoSession:        "Please sign in to continue.",
	ProfileTransient: "Your account is temporarily unavailable. Please try again shortly.",
	ProfileConflict:  "Your account is ready.",
	PaymentDeclined:  "The payment was not approved.",
	MissingFields:    "Required payment information is missing.",
	PaymentBackend:   "We could not confirm your payment. Please retry from the pricing page.",
	PaymentPending:   "Your payment is still being confirmed. Check your balance shortly.",
	BillingFailed:    "The subscription could not be started.",
	Unknown:          "Something went wrong. Please try again.",
}

// Message is the human-readable text shown for the kind.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[Unknown]
}

// Error is a classified failure. Code carries an external code when one
// exists (for example the gateway's result code).
type Error struct {
	Kind    Kind
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Message()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err; nil is "" and unclassified errors are Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return KindOf(err).Message()
}
