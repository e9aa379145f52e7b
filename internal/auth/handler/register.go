package handler

import (
	"errors"
	"net/http"

	"credit-service/internal/auth/credentials"
	"credit-service/internal/outcome"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess, err := h.client.SignUp(
		c.Request.Context(),
		req.Email,
		req.Password,
		req.Name,
	)
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrAlreadyRegistered):
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		case errors.Is(err, credentials.ErrInvalidEmail), errors.Is(err, credentials.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registration failed"})
		}
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

	c.JSON(http.StatusCreated, signedIn("registered", sess, act))
}
