package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	tok, err := svc.CreateForUser("user-42")
	require.NoError(t, err)

	sub, err := svc.Subject(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestTokenRejected(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	t.Run("Expired", func(t *testing.T) {
		tok, err := svc.CreateWithTTL("user-42", -time.Minute)
		require.NoError(t, err)
		_, err = svc.Subject(tok)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		tok, err := NewTokenService("other", time.Hour).CreateForUser("user-42")
		require.NoError(t, err)
		_, err = svc.Subject(tok)
		assert.Error(t, err)
	})

	t.Run("NoSubject", func(t *testing.T) {
		tok, err := svc.CreateForUser("")
		require.NoError(t, err)
		_, err = svc.Subject(tok)
		assert.ErrorIs(t, err, ErrNoSubject)
	})
}
