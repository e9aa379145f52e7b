package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssuer_MintParse(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "credit-service")
	require.NoError(t, err)

	raw, err := issuer.Mint("user-1", "sid-1", "kim@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, "kim@example.com", claims.Email)
}

func TestIssuer_Expired(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "credit-service")
	require.NoError(t, err)

	raw, err := issuer.Mint("user-1", "sid-1", "", time.Now().Add(time.Minute))
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssuer_RejectsForeignTokens(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "credit-service")
	require.NoError(t, err)

	other, err := NewIssuer("ffffffffffffffffffffffffffffffff", "credit-service")
	require.NoError(t, err)
	raw, err := other.Mint("user-1", "sid-1", "", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewIssuer(testSecret, "someone-else")
	require.NoError(t, err)
	raw, err = wrongIssuer.Mint("user-1", "sid-1", "", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_ShortSecret(t *testing.T) {
	_, err := NewIssuer("short", "x")
	require.Error(t, err)
}
