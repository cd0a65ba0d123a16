// Package auth issues and validates the bearer tokens used by the HTTP API.
// Tokens are HS256 JWTs carrying the authenticated customer id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned for tokens that fail parsing, signature
// verification or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload.
type Claims struct {
	CustomerID int `json:"customer_id"`
	jwt.RegisteredClaims
}

// Auth signs and verifies tokens with a shared secret.
type Auth struct {
	secret     []byte
	expiration time.Duration
}

// New constructs an Auth with the signing secret and token lifetime.
func New(secret string, expiration time.Duration) *Auth {
	return &Auth{
		secret:     []byte(secret),
		expiration: expiration,
	}
}

// GenerateToken signs a token for the customer.
func (a *Auth) GenerateToken(customerID int) (string, error) {
	claims := Claims{
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the token and returns its claims.
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
