package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ConfirmRequest struct {
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	PaymentKey    string `json:"payment_key"`
	OrderID       string `json:"order_id"`
	Amount        int    `json:"amount"`
}

type ConfirmResponse struct {
	Success        bool   `json:"success"`
	Credits        int    `json:"credits"`
	CreditsGranted int    `json:"credits_granted"`
	TotalCredits   *int   `json:"total_credits"`
	Error          string `json:"error,omitempty"`
}

// Granted returns the credits added by the purchase under either name the
// backend uses for it.
func (r ConfirmResponse) Granted() int {
	if r.CreditsGranted != 0 {
		return r.CreditsGranted
	}
	return r.Credits
}

type SubscribeRequest struct {
	UserID         string `json:"user_id"`
	Plan           string `json:"plan"`
	TID            string `json:"tid"`
	OrderID        string `json:"order_id"`
	IsAnnual       bool   `json:"is_annual"`
	AuthResultCode string `json:"auth_result_code"`
}

type SubscribeResponse struct {
	Success         bool   `json:"success"`
	Plan            string `json:"plan"`
	PlanName        string `json:"plan_name"`
	CreditsGranted  int    `json:"credits_granted"`
	AmountPaid      int    `json:"amount_paid"`
	NextBillingDate string `json:"next_billing_date"`
	Error           string `json:"error,omitempty"`
}

// Backend is the payment side of the backend API. A response with
// Success false is returned as a *RejectedError.
type Backend interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error)
}

// RejectedError is a well-formed refusal from the backend.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Message)
}

// HTTPBackend calls the backend API over JSON/HTTP.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error) {
	var resp ConfirmResponse
	status, err := b.post(ctx, "/payment/confirm", req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RejectedError{Status: status, Message: resp.Error}
	}
	if resp.TotalCredits == nil {
		return nil, errors.New("backend: confirm response has no total_credits")
	}
	return &resp, nil
}

func (b *HTTPBackend) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error) {
	var resp SubscribeResponse
	status, err := b.post(ctx, "/billing/subscribe", req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RejectedError{Status: status, Message: resp.Error}
	}
	return &resp, nil
}

// post sends body as JSON and decodes the reply into out. Non-2xx replies
// that still carry a JSON body are decoded so the caller sees the
// backend's own error message.
func (b *HTTPBackend) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("backend: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("backend: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend: %s: %w", path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, fmt.Errorf("backend: read %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if res.StatusCode >= 300 {
			return res.StatusCode, &RejectedError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return res.StatusCode, fmt.Errorf("backend: decode %s: %w", path, err)
	}

	return res.StatusCode, nil
}
