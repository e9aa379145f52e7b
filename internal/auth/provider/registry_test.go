package provider

import (
	"context"
	"testing"

	"credit-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider string

func (p namedProvider) Name() string { return string(p) }

func (p namedProvider) AuthCodeURL(state, challenge string) string {
	return "https://" + string(p) + "/authorize?state=" + state
}

func (p namedProvider) ExchangeCode(ctx context.Context, code, verifier string) (*auth.ProviderIdentity, error) {
	return &auth.ProviderIdentity{Provider: string(p)}, nil
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(namedProvider("kakao"), namedProvider("google"))

	p, err := r.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = r.Get("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Equal(t, []string{"google", "kakao"}, r.Names())
}
