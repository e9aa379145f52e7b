package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCookie_RoundTrip(t *testing.T) {
	for _, secure := range []bool{true, false} {
		opts := CookieOptions{Secure: secure}

		rec := httptest.NewRecorder()
		SetCookie(rec, "sid-abc", time.Now().Add(time.Hour), opts)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, "/", cookies[0].Path)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		assert.Equal(t, "sid-abc", ReadCookie(req, opts))
	}
}

func TestSetCookie_NameFollowsSecure(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "sid", time.Now().Add(time.Hour), CookieOptions{Secure: true})
	assert.Equal(t, CookieName, rec.Result().Cookies()[0].Name)

	rec = httptest.NewRecorder()
	SetCookie(rec, "sid", time.Now().Add(time.Hour), CookieOptions{})
	assert.Equal(t, "session", rec.Result().Cookies()[0].Name)
}

func TestClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCookie(rec, CookieOptions{Secure: true})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestReadCookie_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ReadCookie(req, CookieOptions{Secure: true}))
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID()
	require.NoError(t, err)
	b, err := GenerateID()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
