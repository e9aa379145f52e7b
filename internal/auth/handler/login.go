package handler

import (
	"errors"
	"net/http"

	"credit-service/internal/auth/credentials"
	"credit-service/internal/outcome"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess, err := h.client.SignInWithPassword(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if errors.Is(err, credentials.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": outcome.AuthFailed.Message()})
		return
	}

	h.issueCookie(c, sess)

	act, err := h.activator.Activate(c.Request.Context(), sess)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  outcome.UserMessage(err),
			"reason": outcome.KindOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, signedIn("logged_in", sess, act))
}
