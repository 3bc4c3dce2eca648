package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates a session token that failed signature or
// claims validation.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer mints and validates signed session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer signing with the given secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session token for userID. The returned token ID (jti)
// names the session slot the token belongs to.
func (ti *TokenIssuer) Issue(userID string, now time.Time) (token, tokenID string, err error) {
	tokenID = uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, tokenID, nil
}

// Parse validates a session token and returns the subject user ID and
// token ID. Expired or tampered tokens return ErrInvalidToken.
func (ti *TokenIssuer) Parse(token string) (userID, tokenID string, err error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return ti.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}
