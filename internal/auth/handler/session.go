package handler

import (
	"net/http"

	"credit-service/internal/middleware"
	"credit-service/internal/outcome"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes mounts the authenticated session endpoints.
// The group must already carry the auth middleware.
func (h *Handler) RegisterSessionRoutes(api gin.IRouter) {
	api.GET("/session", h.Session)
	api.GET("/me", h.Me)
}

// Session is the initial page-load check: it provisions if needed and
// returns the balance now held for this browser session.
func (h *Handler) Session(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": outcome.NoSession.Message()})
		return
	}

	act, err := h.activator.Activate(c.Request.Context(), sess)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  outcome.UserMessage(err),
			"reason": outcome.KindOf(err),
		})
		return
	}

	balance := gin.H{"known": act.Snapshot.Known}
	if act.Snapshot.Known {
		balance["credits"] = act.Snapshot.Balance
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       sess.Identity,
		"expires_at": sess.ExpiresAt,
		"tier":       act.Profile.Tier,
		"balance":    balance,
	})
}

func (h *Handler) Me(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": outcome.NoSession.Message()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      sess.Identity.ID,
		"email":        sess.Identity.Email,
		"display_name": sess.Identity.DisplayName(),
	})
}
