package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"credit-service/internal/auth"
	"credit-service/internal/idp"
	"credit-service/internal/logger"
	"credit-service/internal/session"
)

// unexported, collision-proof context key
type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// SessionFromContext returns the session attached by RequireAuth.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*auth.Session)
	return s, ok && s != nil
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return s.Identity.ID, true
}

type SessionGetter interface {
	GetSession(ctx context.Context, ref idp.SessionRef) (*auth.Session, error)
}

type AuthMiddleware struct {
	Sessions SessionGetter
	Cookies  session.CookieOptions
}

func NewAuthMiddleware(sessions SessionGetter, cookies session.CookieOptions) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions, Cookies: cookies}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := idp.SessionRef{
			SID:         session.ReadCookie(r, a.Cookies),
			AccessToken: bearerToken(r),
		}
		if ref.SID == "" && ref.AccessToken == "" {
			unauthorized(w)
			return
		}

		sess, err := a.Sessions.GetSession(r.Context(), ref)
		if err != nil {
			logger.Error("session lookup failed", map[string]any{"error": err})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session unavailable"})
			return
		}
		if sess == nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
