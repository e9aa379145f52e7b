package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsIdentity(t *testing.T) {
	id, err := claims{
		Subject:       "109",
		Email:         "kim@example.com",
		EmailVerified: true,
		Name:          "Kim Minji",
		GivenName:     "Minji",
	}.identity()
	require.NoError(t, err)

	assert.Equal(t, "google", id.Provider)
	assert.Equal(t, "109", id.ProviderUserID)
	assert.Equal(t, "Kim Minji", id.FullName)
	assert.Equal(t, "Minji", id.Nickname)
	assert.True(t, id.EmailVerified)
}

func TestClaimsIdentity_MissingRequired(t *testing.T) {
	_, err := claims{Subject: "109"}.identity()
	require.Error(t, err)

	_, err = claims{Email: "kim@example.com"}.identity()
	require.Error(t, err)
}
