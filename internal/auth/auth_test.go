package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	a := New("s3cret", time.Minute)

	token, err := a.GenerateToken(42)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.CustomerID != 42 {
		t.Errorf("wrong customer id, got %d want %d", claims.CustomerID, 42)
	}
}

func TestExpiredToken(t *testing.T) {
	a := New("s3cret", -time.Minute)

	token, err := a.GenerateToken(42)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got error %v, want %v", err, ErrInvalidToken)
	}
}

func TestWrongSecret(t *testing.T) {
	a := New("s3cret", time.Minute)
	b := New("other", time.Minute)

	token, err := a.GenerateToken(42)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := b.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got error %v, want %v", err, ErrInvalidToken)
	}
}

func TestGarbageToken(t *testing.T) {
	a := New("s3cret", time.Minute)
	if _, err := a.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got error %v, want %v", err, ErrInvalidToken)
	}
}
