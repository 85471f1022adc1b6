package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, exp, err := issuer.Issue(42, 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: 42, Version: 3}, claims)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, _, err := issuer.Issue(1, 0)
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenIssuer("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue(1, 0)
	require.NoError(t, err)
	_, err = issuer.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
