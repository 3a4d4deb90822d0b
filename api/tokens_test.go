package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	s := newTokenStore()

	token, err := s.Issue("alice@example.com")
	require.NoError(t, err)
	require.Contains(t, token, ".")

	email, ok := s.Verify(token)
	assert.True(t, ok)
	assert.Equal(t, "alice@example.com", email)
}

func TestTokenStoreRejectsTampering(t *testing.T) {
	s := newTokenStore()

	token, err := s.Issue("alice@example.com")
	require.NoError(t, err)

	_, ok := s.Verify(token + "x")
	assert.False(t, ok, "altered secret must not verify")

	_, ok = s.Verify("not-a-token")
	assert.False(t, ok, "token without separator must not verify")

	_, ok = s.Verify("")
	assert.False(t, ok)
}

func TestTokenStoreRevoke(t *testing.T) {
	s := newTokenStore()

	token, err := s.Issue("alice@example.com")
	require.NoError(t, err)

	s.Revoke(token)
	_, ok := s.Verify(token)
	assert.False(t, ok, "revoked token must not verify")
}
