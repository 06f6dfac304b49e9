package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/identity"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	p := Principal{UserID: "u-1", Email: "a@careconnect.test", UserType: identity.UserTypeDoctor}

	signed, expires, err := tokens.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	got, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokensRejectForgedAndExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	signed, _, err := tokens.Issue(Principal{UserID: "u-1", UserType: identity.UserTypePatient})
	require.NoError(t, err)

	_, err = NewTokens("other-secret", time.Minute).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedirectForUnknownType(t *testing.T) {
	assert.Equal(t, "/", RedirectFor("nurse"))
}
