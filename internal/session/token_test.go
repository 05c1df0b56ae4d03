package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/session"
)

func newIssuer() *session.TokenIssuer {
	return session.NewTokenIssuer(config.SessionConfig{
		Secret:      "test-secret",
		Issuer:      "trialscope",
		TokenExpiry: time.Hour,
	})
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := newIssuer()

	token, expiresAt, err := issuer.Issue("sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	id, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, _, err := newIssuer().Issue("sess-1")
	require.NoError(t, err)

	other := session.NewTokenIssuer(config.SessionConfig{Secret: "other", Issuer: "trialscope"})
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenIssuer_Expired(t *testing.T) {
	claims := &session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trialscope",
			Audience:  jwt.ClaimStrings{"session"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		SessionID: "sess-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newIssuer().Validate(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenIssuer_WrongAudience(t *testing.T) {
	claims := &session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trialscope",
			Audience:  jwt.ClaimStrings{"access"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		SessionID: "sess-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newIssuer().Validate(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenIssuer_Garbage(t *testing.T) {
	_, err := newIssuer().Validate("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
