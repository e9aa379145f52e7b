package payment

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"credit-service/internal/auth"
	"credit-service/internal/ledger"
	"credit-service/internal/outcome"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*ConfirmResponse)
	return r, args.Error(1)
}

func (m *MockBackend) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*SubscribeResponse)
	return r, args.Error(1)
}

func total(n int) *int { return &n }

// signedIn returns a registry whose session "sid-1" holds u-1 at balance.
func signedIn(balance int) *ledger.Registry {
	reg := ledger.NewRegistry()
	s := reg.For("sid-1")
	s.Set(s.Reserve("u-1"), auth.Identity{ID: "u-1", Email: "kim@example.com"}, balance)
	return reg
}

func paidCallback(tid string) Callback {
	return Callback{
		ResultCode:   "0000",
		ResultMsg:    "success",
		TID:          tid,
		OrderID:      "order-" + uuid.NewString(),
		Amount:       "9900",
		AuthToken:    "auth-token",
		MallReserved: `{"userId":"u-1","plan":"credits_100"}`,
	}
}

func TestConfirm_AppliesAuthoritativeTotal(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	cb := paidCallback("tid-1")

	backend.On("Confirm", mock.Anything, ConfirmRequest{
		UserID: "u-1", TransactionID: "tid-1", PaymentKey: "auth-token", OrderID: cb.OrderID, Amount: 9900,
	}).Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", cb)

	assert.Equal(t, Confirmed, out.Status)
	assert.False(t, out.Duplicate)
	assert.True(t, out.Applied)
	assert.Equal(t, 100, out.CreditsGranted)
	assert.Equal(t, 110, out.TotalCredits)
	assert.Equal(t, 110, reg.For("sid-1").Snapshot().Balance)

	u, err := url.Parse(out.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, outcome.PaymentSuccessPath, u.Path)
	assert.Equal(t, "tid-1", u.Query().Get("tid"))
	assert.Equal(t, "110", u.Query().Get("total"))
	backend.AssertExpectations(t)
}

func TestConfirm_Declined(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)

	cb := paidCallback("tid-2")
	cb.ResultCode = "2001"
	cb.ResultMsg = "card rejected"

	out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", cb)

	assert.Equal(t, Declined, out.Status)
	assert.Equal(t, outcome.PaymentDeclined, outcome.KindOf(out.Err))
	assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)
	backend.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)

	u, err := url.Parse(out.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, outcome.PaymentFailPath, u.Path)
	assert.Equal(t, "2001", u.Query().Get("code"))
	assert.Equal(t, "card rejected", u.Query().Get("message"))
}

func TestConfirm_DuplicateTransactionAppliedOnce(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	m := NewMachine(backend, reg)
	cb := paidCallback("tid-3")

	first := m.Confirm(context.Background(), "sid-1", cb)
	second := m.Confirm(context.Background(), "sid-1", cb)

	assert.Equal(t, Confirmed, first.Status)
	assert.Equal(t, Confirmed, second.Status)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Applied)
	assert.Equal(t, 110, second.TotalCredits)
	assert.Equal(t, 110, reg.For("sid-1").Snapshot().Balance)
	backend.AssertNumberOfCalls(t, "Confirm", 1)
}

func TestConfirm_ConcurrentDuplicatesReachBackendOnce(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)

	entered := make(chan struct{})
	release := make(chan struct{})
	backend.On("Confirm", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	m := NewMachine(backend, reg)
	cb := paidCallback("tid-4")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Confirm(context.Background(), "sid-1", cb)
	}()

	<-entered
	dup := m.Confirm(context.Background(), "sid-1", cb)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, Confirming, dup.Status)
	assert.Equal(t, outcome.PaymentPending, outcome.KindOf(dup.Err))

	close(release)
	wg.Wait()

	backend.AssertNumberOfCalls(t, "Confirm", 1)
	assert.Equal(t, 110, reg.For("sid-1").Snapshot().Balance)
}

func TestConfirm_InFlightDuplicateIsNotReportedAsSuccess(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	m := NewMachine(backend, reg)
	cb := paidCallback("tid-4b")

	var dup Outcome
	backend.On("Confirm", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			dup = m.Confirm(context.Background(), "sid-1", cb)
		}).
		Return(nil, &RejectedError{Status: 200, Message: "card refused"}).Once()

	first := m.Confirm(context.Background(), "sid-1", cb)
	require.Equal(t, Errored, first.Status)

	assert.True(t, dup.Duplicate)
	assert.NotEqual(t, Confirmed, dup.Status)
	u, err := url.Parse(dup.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, outcome.PaymentFailPath, u.Path)
	assert.Equal(t, "IN_PROGRESS", u.Query().Get("code"))
	assert.Empty(t, u.Query().Get("total"))

	backend.AssertNumberOfCalls(t, "Confirm", 1)
	assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)
}

func TestConfirm_MissingFieldsNeverReachBackend(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Callback)
	}{
		{"empty reserved", func(cb *Callback) { cb.MallReserved = "" }},
		{"malformed reserved", func(cb *Callback) { cb.MallReserved = "{userId:" }},
		{"no user", func(cb *Callback) { cb.MallReserved = `{"plan":"credits_100"}` }},
		{"no plan", func(cb *Callback) { cb.MallReserved = `{"userId":"u-1"}` }},
		{"no tid", func(cb *Callback) { cb.TID = " " }},
		{"non-numeric amount", func(cb *Callback) { cb.Amount = "9,900" }},
		{"declined and malformed", func(cb *Callback) { cb.ResultCode = "2001"; cb.MallReserved = "oops" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := signedIn(10)
			backend := new(MockBackend)

			cb := paidCallback("tid-5")
			tt.mutate(&cb)

			out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", cb)

			assert.Equal(t, Errored, out.Status)
			assert.Equal(t, outcome.MissingFields, outcome.KindOf(out.Err))
			assert.Contains(t, out.RedirectURL(), "MISSING_FIELDS")
			assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)
			backend.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
		})
	}
}

func TestConfirm_BackendFailureAllowsRetry(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(nil, &RejectedError{Status: 200, Message: "order not found"}).Once()
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	m := NewMachine(backend, reg)
	cb := paidCallback("tid-6")

	failed := m.Confirm(context.Background(), "sid-1", cb)
	assert.Equal(t, Errored, failed.Status)
	assert.Equal(t, outcome.PaymentBackend, outcome.KindOf(failed.Err))
	assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)

	u, err := url.Parse(failed.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, "CONFIRM_FAILED", u.Query().Get("code"))
	assert.Equal(t, "order not found", u.Query().Get("message"))

	retried := m.Confirm(context.Background(), "sid-1", cb)
	assert.Equal(t, Confirmed, retried.Status)
	assert.False(t, retried.Duplicate)
	assert.Equal(t, 110, reg.For("sid-1").Snapshot().Balance)
}

func TestConfirm_NetworkError(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", paidCallback("tid-7"))

	assert.Equal(t, outcome.PaymentBackend, outcome.KindOf(out.Err))
	assert.True(t, errors.Is(out.Err, context.DeadlineExceeded))
}

func TestConfirm_OlderReadLosesToConfirmedTotal(t *testing.T) {
	reg := signedIn(10)
	s := reg.For("sid-1")
	kim := auth.Identity{ID: "u-1", Email: "kim@example.com"}

	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	// A page-load read starts before the payment and finishes after it.
	slowRead := s.Reserve("u-1")
	NewMachine(backend, reg).Confirm(context.Background(), "sid-1", paidCallback("tid-8"))
	assert.False(t, s.Set(slowRead, kim, 10))

	assert.Equal(t, 110, s.Snapshot().Balance)
}

func TestConfirm_TotalWinsOverReadsDuringCall(t *testing.T) {
	reg := signedIn(100)
	s := reg.For("sid-1")
	kim := auth.Identity{ID: "u-1", Email: "kim@example.com"}

	var lateRead ledger.Ticket
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// A page load finishes while the backend call is open, and a
			// second one starts but has not finished yet.
			load := s.Reserve("u-1")
			require.True(t, s.Set(load, kim, 120))
			lateRead = s.Reserve("u-1")
		}).
		Return(&ConfirmResponse{Success: true, Credits: 30, TotalCredits: total(150)}, nil).Once()

	out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", paidCallback("tid-8b"))

	assert.Equal(t, Confirmed, out.Status)
	assert.True(t, out.Applied)
	assert.Equal(t, 150, s.Snapshot().Balance)

	assert.False(t, s.Set(lateRead, kim, 120))
	assert.Equal(t, 150, s.Snapshot().Balance)
}

func TestConfirm_ResponseWithoutTotalIsBackendError(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(&ConfirmResponse{Success: true, Credits: 100}, nil).Once()

	out := NewMachine(backend, reg).Confirm(context.Background(), "sid-1", paidCallback("tid-8c"))

	assert.Equal(t, Errored, out.Status)
	assert.Equal(t, outcome.PaymentBackend, outcome.KindOf(out.Err))
	assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)
}

func TestConfirm_WithoutLocalSession(t *testing.T) {
	reg := ledger.NewRegistry()
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.Anything).
		Return(&ConfirmResponse{Success: true, Credits: 100, TotalCredits: total(110)}, nil).Once()

	out := NewMachine(backend, reg).Confirm(context.Background(), "", paidCallback("tid-9"))

	assert.Equal(t, Confirmed, out.Status)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, reg.Len())
}

func TestConfirm_PaymentKeyFallsBackToTID(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Confirm", mock.Anything, mock.MatchedBy(func(r ConfirmRequest) bool {
		return r.PaymentKey == "tid-10"
	})).Return(&ConfirmResponse{Success: true, TotalCredits: total(5)}, nil).Once()

	cb := paidCallback("tid-10")
	cb.AuthToken = ""
	out := NewMachine(backend, ledger.NewRegistry()).Confirm(context.Background(), "", cb)

	assert.Equal(t, Confirmed, out.Status)
	backend.AssertExpectations(t)
}

func billingCallback(tid string) BillingCallback {
	return BillingCallback{
		AuthResultCode: "0000",
		AuthResultMsg:  "ok",
		TID:            tid,
		OrderID:        "billing-" + uuid.NewString(),
		Amount:         "29000",
		MallReserved:   `{"userId":"u-1","plan":"pro","isAnnual":true}`,
	}
}

func TestSubscribe_GrantsCreditsOnce(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	cb := billingCallback("btid-1")

	backend.On("Subscribe", mock.Anything, SubscribeRequest{
		UserID: "u-1", Plan: "pro", TID: "btid-1", OrderID: cb.OrderID, IsAnnual: true, AuthResultCode: "0000",
	}).Return(&SubscribeResponse{
		Success: true, Plan: "pro", PlanName: "Pro", CreditsGranted: 300, AmountPaid: 29000, NextBillingDate: "2026-11-16",
	}, nil).Once()

	m := NewMachine(backend, reg)

	out := m.Subscribe(context.Background(), "sid-1", cb)
	assert.Equal(t, Confirmed, out.Status)
	assert.True(t, out.Applied)
	assert.Equal(t, 310, reg.For("sid-1").Snapshot().Balance)

	u, err := url.Parse(out.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, outcome.BillingSuccessPath, u.Path)
	assert.Equal(t, "Pro", u.Query().Get("planName"))
	assert.Equal(t, "2026-11-16", u.Query().Get("nextBillingDate"))

	dup := m.Subscribe(context.Background(), "sid-1", cb)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, 310, reg.For("sid-1").Snapshot().Balance)
	backend.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestSubscribe_AuthFailureGoesToBillingFail(t *testing.T) {
	backend := new(MockBackend)
	cb := billingCallback("btid-2")
	cb.AuthResultCode = "F100"
	cb.AuthResultMsg = "card expired"
	cb.MallReserved = ""

	out := NewMachine(backend, signedIn(10)).Subscribe(context.Background(), "sid-1", cb)

	assert.Equal(t, Declined, out.Status)
	assert.Equal(t, outcome.BillingFailed, outcome.KindOf(out.Err))

	u, err := url.Parse(out.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, outcome.BillingFailPath, u.Path)
	assert.Equal(t, "card expired", u.Query().Get("error"))
	assert.Equal(t, "F100", u.Query().Get("code"))
	backend.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestSubscribe_MissingFields(t *testing.T) {
	backend := new(MockBackend)
	cb := billingCallback("btid-3")
	cb.MallReserved = `{"plan":"pro"}`

	out := NewMachine(backend, signedIn(10)).Subscribe(context.Background(), "sid-1", cb)

	assert.Equal(t, outcome.BillingFailed, outcome.KindOf(out.Err))
	assert.True(t, strings.HasPrefix(out.RedirectURL(), outcome.BillingFailPath))
	backend.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestSubscribe_BackendFailure(t *testing.T) {
	reg := signedIn(10)
	backend := new(MockBackend)
	backend.On("Subscribe", mock.Anything, mock.Anything).
		Return(nil, &RejectedError{Status: 200, Message: "billing key rejected"}).Once()

	out := NewMachine(backend, reg).Subscribe(context.Background(), "sid-1", billingCallback("btid-4"))

	assert.Equal(t, Errored, out.Status)
	assert.Equal(t, outcome.BillingFailed, outcome.KindOf(out.Err))
	assert.Contains(t, out.RedirectURL(), "billing+key+rejected")
	assert.Equal(t, 10, reg.For("sid-1").Snapshot().Balance)
}

func TestSubscribe_UnknownBalanceIsNotGuessed(t *testing.T) {
	reg := ledger.NewRegistry()
	reg.For("sid-1")

	backend := new(MockBackend)
	backend.On("Subscribe", mock.Anything, mock.Anything).
		Return(&SubscribeResponse{Success: true, CreditsGranted: 300}, nil).Once()

	out := NewMachine(backend, reg).Subscribe(context.Background(), "sid-1", billingCallback("btid-5"))

	assert.Equal(t, Confirmed, out.Status)
	assert.False(t, out.Applied)
	assert.False(t, reg.For("sid-1").Snapshot().Known)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "awaiting_redirect", AwaitingRedirect.String())
	assert.Equal(t, "confirming", Confirming.String())
	assert.Equal(t, "error", Errored.String())
}
