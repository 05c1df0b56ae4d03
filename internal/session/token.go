package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"trialscope/internal/config"
	"trialscope/internal/domain"
)

const tokenAudience = "session"

// Claims identifies the session a bearer token belongs to.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenIssuer signs and verifies session tokens with HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewTokenIssuer creates a TokenIssuer from session config.
func NewTokenIssuer(cfg config.SessionConfig) *TokenIssuer {
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, expiry: expiry}
}

// Issue returns a signed token for sessionID and its expiry.
func (t *TokenIssuer) Issue(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.expiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
		SessionID: sessionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies a token and returns the session id it carries.
func (t *TokenIssuer) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.SessionID, nil
}
