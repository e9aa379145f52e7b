// Package payment confirms gateway-authorized purchases with the backend
// and applies the resulting balance at most once per transaction.
package payment

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ResultOK is the gateway's success result code.
const ResultOK = "0000"

// Callback is the gateway's redirect after a one-time payment.
type Callback struct {
	ResultCode   string `form:"resultCode"`
	ResultMsg    string `form:"resultMsg"`
	TID          string `form:"tid"`
	OrderID      string `form:"orderId"`
	Amount       string `form:"amount"`
	AuthToken    string `form:"authToken"`
	MallReserved string `form:"mallReserved"`
}

// BillingCallback is the gateway's redirect after a billing-key
// authorization for a subscription.
type BillingCallback struct {
	AuthResultCode string `form:"authResultCode"`
	AuthResultMsg  string `form:"authResultMsg"`
	TID            string `form:"tid"`
	OrderID        string `form:"orderId"`
	Amount         string `form:"amount"`
	MallReserved   string `form:"mallReserved"`
}

// reserved is the merchant payload echoed back by the gateway.
type reserved struct {
	UserID   string `json:"userId"`
	Plan     string `json:"plan"`
	IsAnnual bool   `json:"isAnnual"`
}

// Pending is a gateway transaction waiting to be confirmed.
type Pending struct {
	TransactionID string
	OrderID       string
	Amount        int
	Plan          string
	UserID        string
	Annual        bool
	AuthToken     string
	Raw           map[string]string
}

var (
	errNoReserved  = errors.New("merchant payload is empty")
	errBadReserved = errors.New("merchant payload is not valid JSON")
	errMissingUser = errors.New("user id is missing")
	errMissingPlan = errors.New("plan is missing")
	errMissingTID  = errors.New("transaction id is missing")
	errBadAmount   = errors.New("amount is not numeric")
)

func parseReserved(raw string) (reserved, error) {
	var r reserved
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r, errNoReserved
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, errBadReserved
	}
	return r, nil
}

// Pending builds the transaction from the callback. Any missing or
// malformed field is an error; nothing is sent to the backend then.
func (cb Callback) Pending() (*Pending, error) {
	r, err := parseReserved(cb.MallReserved)
	if err != nil {
		return nil, err
	}

	switch {
	case r.UserID == "":
		return nil, errMissingUser
	case r.Plan == "":
		return nil, errMissingPlan
	case strings.TrimSpace(cb.TID) == "":
		return nil, errMissingTID
	}

	amount, err := strconv.Atoi(strings.TrimSpace(cb.Amount))
	if err != nil || amount < 0 {
		return nil, errBadAmount
	}

	return &Pending{
		TransactionID: strings.TrimSpace(cb.TID),
		OrderID:       cb.OrderID,
		Amount:        amount,
		Plan:          r.Plan,
		UserID:        r.UserID,
		Annual:        r.IsAnnual,
		AuthToken:     cb.AuthToken,
		Raw: map[string]string{
			"resultCode":   cb.ResultCode,
			"resultMsg":    cb.ResultMsg,
			"tid":          cb.TID,
			"orderId":      cb.OrderID,
			"amount":       cb.Amount,
			"mallReserved": cb.MallReserved,
		},
	}, nil
}

// Pending builds the subscription request. The amount is informational
// for billing, so only its presence as a number is checked when given.
func (cb BillingCallback) Pending() (*Pending, error) {
	r, err := parseReserved(cb.MallReserved)
	if err != nil {
		return nil, err
	}

	switch {
	case r.UserID == "":
		return nil, errMissingUser
	case r.Plan == "":
		return nil, errMissingPlan
	case strings.TrimSpace(cb.TID) == "":
		return nil, errMissingTID
	}

	amount := 0
	if a := strings.TrimSpace(cb.Amount); a != "" {
		if amount, err = strconv.Atoi(a); err != nil {
			return nil, errBadAmount
		}
	}

	return &Pending{
		TransactionID: strings.TrimSpace(cb.TID),
		OrderID:       cb.OrderID,
		Amount:        amount,
		Plan:          r.Plan,
		UserID:        r.UserID,
		Annual:        r.IsAnnual,
		Raw: map[string]string{
			"authResultCode": cb.AuthResultCode,
			"authResultMsg":  cb.AuthResultMsg,
			"tid":            cb.TID,
			"orderId":        cb.OrderID,
			"amount":         cb.Amount,
			"mallReserved":   cb.MallReserved,
		},
	}, nil
}
