package outcome

import (
	"errors"
	"net/url"
	"strconv"
)

const (
	HomePath           = "/"
	LoginPath          = "/login"
	PaymentSuccessPath = "/pricing/success"
	PaymentFailPath    = "/pricing/fail"
	BillingSuccessPath = "/pricing/billing-success"
	BillingFailPath    = "/pricing/billing-fail"
)

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// FailureURL maps a failure to its one exit destination.
func FailureURL(err error) string {
	kind := KindOf(err)
	msg := UserMessage(err)

	code := ""
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
	}

	switch kind {
	case PaymentDeclined:
		if code == "" {
			code = "UNKNOWN"
		}
		return withQuery(PaymentFailPath, url.Values{"code": {code}, "message": {msg}})
	case MissingFields:
		return withQuery(PaymentFailPath, url.Values{"code": {"MISSING_FIELDS"}, "message": {msg}})
	case PaymentBackend:
		return withQuery(PaymentFailPath, url.Values{"code": {"CONFIRM_FAILED"}, "message": {msg}})
	case PaymentPending:
		if code == "" {
			code = "IN_PROGRESS"
		}
		return withQuery(PaymentFailPath, url.Values{"code": {code}, "message": {msg}})
	case BillingFailed:
		q := url.Values{"error": {msg}}
		if code != "" {
			q.Set("code", code)
		}
		return withQuery(BillingFailPath, q)
	case ProfileConflict:
		return HomePath
	case AuthFailed, CallbackFailed, NoSession, ProfileTransient:
		return withQuery(LoginPath, url.Values{"error": {string(kind)}})
	default:
		return withQuery(LoginPath, url.Values{"error": {string(Unknown)}})
	}
}

// HomeURL is the post-login destination. bonus > 0 marks a first login
// that received the signup credits.
func HomeURL(bonus int) string {
	if bonus <= 0 {
		return HomePath
	}
	return withQuery(HomePath, url.Values{"signup_bonus": {strconv.Itoa(bonus)}})
}

// PaymentSuccessURL forwards the confirmed transaction to the success page.
func PaymentSuccessURL(tid, orderID string, amount, credits, total int) string {
	return withQuery(PaymentSuccessPath, url.Values{
		"tid":     {tid},
		"orderId": {orderID},
		"amount":  {strconv.Itoa(amount)},
		"credits": {strconv.Itoa(credits)},
		"total":   {strconv.Itoa(total)},
	})
}

// BillingSuccessURL forwards the started subscription to its success page.
func BillingSuccessURL(plan, planName string, credits, amount int, nextBillingDate string) string {
	return withQuery(BillingSuccessPath, url.Values{
		"plan":            {plan},
		"planName":        {planName},
		"credits":         {strconv.Itoa(credits)},
		"amount":          {strconv.Itoa(amount)},
		"nextBillingDate": {nextBillingDate},
	})
}
