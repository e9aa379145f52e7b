package handler

import (
	"context"
	"errors"
	"net/http"

	"credit-service/internal/account"
	"credit-service/internal/auth"
	"credit-service/internal/auth/provider"
	"credit-service/internal/establish"
	"credit-service/internal/idp"
	"credit-service/internal/logger"
	"credit-service/internal/outcome"
	"credit-service/internal/profile"
	"credit-service/internal/session"

	"github.com/gin-gonic/gin"
)

// Activator is the provision-then-publish step run after every sign-in.
type Activator interface {
	Activate(ctx context.Context, sess *auth.Session) (*account.Activation, error)
}

type Handler struct {
	client    idp.Client
	machine   *establish.Machine
	activator Activator
	cookies   session.CookieOptions
}

func NewHandler(
	client idp.Client,
	machine *establish.Machine,
	activator Activator,
	cookies session.CookieOptions,
) *Handler {
	return &Handler{
		client:    client,
		machine:   machine,
		activator: activator,
		cookies:   cookies,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")

	g.GET("/login/:provider", h.login)
	g.GET("/callback/:provider", h.callback)
	g.GET("/callback", h.tokenCallback)
	g.POST("/callback", h.tokenCallback)

	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/logout", h.Logout)
	g.POST("/refresh", h.Refresh)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	state := h.generateState(c)
	_, codeChallenge := h.generatePKCE(c)

	authURL, err := h.client.SignInWithProvider(c.Request.Context(), providerName, state, codeChallenge)
	if errors.Is(err, provider.ErrUnknownProvider) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}
	if err != nil {
		c.Redirect(http.StatusFound, outcome.FailureURL(outcome.New(outcome.AuthFailed, "auth.login", err)))
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// callback completes an OAuth authorization-code redirect.
func (h *Handler) callback(c *gin.Context) {
	res := h.machine.Resolve(c.Request.Context(), establish.Redirect{
		Provider:      c.Param("provider"),
		Code:          c.Query("code"),
		CodeVerifier:  getPKCEVerifier(c),
		StateValid:    validateState(c),
		ProviderError: c.Query("error"),
		StoredSID:     session.ReadCookie(c.Request, h.cookies),
	})
	h.clearFlowCookies(c)

	h.finish(c, res)
}

// tokenCallback completes a magic-link style redirect. The browser
// forwards the access token it received in the URL fragment.
func (h *Handler) tokenCallback(c *gin.Context) {
	accessToken := c.Query("access_token")
	if accessToken == "" {
		accessToken = c.PostForm("access_token")
	}

	res := h.machine.Resolve(c.Request.Context(), establish.Redirect{
		ProviderError: c.Query("error"),
		AccessToken:   accessToken,
		StoredSID:     session.ReadCookie(c.Request, h.cookies),
	})

	h.finish(c, res)
}

func (h *Handler) finish(c *gin.Context, res establish.Result) {
	if res.State != establish.Established {
		c.Redirect(http.StatusFound, outcome.FailureURL(res.Err))
		return
	}

	h.issueCookie(c, res.Session)

	act, err := h.activator.Activate(c.Request.Context(), res.Session)
	if err != nil {
		c.Redirect(http.StatusFound, outcome.FailureURL(err))
		return
	}

	bonus := 0
	if act.Created {
		bonus = profile.SignupBonus
	}

	logger.Info("login completed", map[string]any{
		"user_id":    res.Session.Identity.ID,
		"session_id": res.Session.ID,
		"ip":         c.ClientIP(),
		"new_user":   act.Created,
	})

	c.Redirect(http.StatusFound, outcome.HomeURL(bonus))
}

func (h *Handler) Logout(c *gin.Context) {
	sid := session.ReadCookie(c.Request, h.cookies)
	if sid != "" {
		// best-effort: the cookie is cleared regardless
		if err := h.client.SignOut(c.Request.Context(), sid); err != nil {
			logger.Warn("sign-out failed", map[string]any{
				"session_id": sid,
				"error":      err,
			})
		}
	}

	session.ClearCookie(c.Writer, h.cookies)

	c.Status(http.StatusNoContent)
}

func (h *Handler) Refresh(c *gin.Context) {
	sid := session.ReadCookie(c.Request, h.cookies)

	sess, err := h.client.Refresh(c.Request.Context(), sid)
	if errors.Is(err, idp.ErrNoSession) || (err == nil && sess == nil) {
		session.ClearCookie(c.Writer, h.cookies)
		c.JSON(http.StatusUnauthorized, gin.H{"error": outcome.NoSession.Message()})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session error"})
		return
	}

	h.issueCookie(c, sess)

	c.JSON(http.StatusOK, gin.H{
		"access_token": sess.AccessToken,
		"expires_at":   sess.ExpiresAt,
	})
}

func (h *Handler) issueCookie(c *gin.Context, sess *auth.Session) {
	session.SetCookie(c.Writer, sess.ID, sess.ExpiresAt, h.cookies)
}

// signedIn is the JSON body returned by password sign-in and sign-up.
func signedIn(status string, sess *auth.Session, act *account.Activation) gin.H {
	body := gin.H{
		"status":       status,
		"user":         sess.Identity,
		"access_token": sess.AccessToken,
		"expires_at":   sess.ExpiresAt,
		"credits":      act.Profile.Credits,
		"tier":         act.Profile.Tier,
	}
	if act.Created {
		body["signup_bonus"] = profile.SignupBonus
	}
	return body
}
