package handler

import (
	"net/http"

	"credit-service/internal/logger"
	"credit-service/internal/outcome"
	"credit-service/internal/payment"
	"credit-service/internal/session"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	machine *payment.Machine
	cookies session.CookieOptions
}

func NewHandler(machine *payment.Machine, cookies session.CookieOptions) *Handler {
	return &Handler{machine: machine, cookies: cookies}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/payments")

	g.POST("/callback", h.callback)
	g.GET("/callback", h.callback)
	g.POST("/billing/callback", h.billingCallback)
	g.GET("/billing/callback", h.billingQuery)
}

func (h *Handler) callback(c *gin.Context) {
	var cb payment.Callback
	if err := c.ShouldBind(&cb); err != nil {
		logger.Warn("payment callback unreadable", map[string]any{"error": err})
		c.Redirect(http.StatusSeeOther, outcome.FailureURL(
			outcome.New(outcome.MissingFields, "payment.callback", err),
		))
		return
	}

	sid := session.ReadCookie(c.Request, h.cookies)
	out := h.machine.Confirm(c.Request.Context(), sid, cb)

	c.Redirect(http.StatusSeeOther, out.RedirectURL())
}

func (h *Handler) billingCallback(c *gin.Context) {
	var cb payment.BillingCallback
	if err := c.ShouldBind(&cb); err != nil {
		logger.Warn("billing callback unreadable", map[string]any{"error": err})
		c.Redirect(http.StatusSeeOther, outcome.FailureURL(
			outcome.New(outcome.BillingFailed, "payment.billing_callback", err),
		))
		return
	}

	sid := session.ReadCookie(c.Request, h.cookies)
	out := h.machine.Subscribe(c.Request.Context(), sid, cb)

	c.Redirect(http.StatusSeeOther, out.RedirectURL())
}

// billingQuery handles the gateway's GET variant, which never carries
// enough to start a subscription.
func (h *Handler) billingQuery(c *gin.Context) {
	e := outcome.New(outcome.BillingFailed, "payment.billing_query", nil)

	if code := c.Query("authResultCode"); code != payment.ResultOK {
		e.Code = code
		e.Message = c.Query("authResultMsg")
	} else {
		e.Code = "INVALID_ACCESS"
		e.Message = "Invalid access."
	}

	c.Redirect(http.StatusSeeOther, outcome.FailureURL(e))
}
