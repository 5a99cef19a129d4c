package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/bounty/internal/apperr"
	"github.com/garnizeh/bounty/internal/auth"
)

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := auth.NewTokenCodec("secret", time.Hour)
	tok, err := codec.Issue("identity-1", "wallet-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := codec.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "identity-1" || claims.WalletAddress != "wallet-1" {
		t.Fatalf("unexpected claims %#v", claims)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatalf("expected iat and exp to be set")
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != time.Hour {
		t.Fatalf("expected 1h validity, got %s", d)
	}
}

func TestTokenCodec_DefaultTTL(t *testing.T) {
	codec := auth.NewTokenCodec("secret", 0)
	tok, err := codec.Issue("identity-1", "wallet-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := codec.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != 7*24*time.Hour {
		t.Fatalf("expected 7d validity, got %s", d)
	}
}

func TestTokenCodec_Rejects(t *testing.T) {
	codec := auth.NewTokenCodec("secret", time.Hour)
	valid, err := codec.Issue("identity-1", "wallet-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	forged, _ := auth.NewTokenCodec("other-secret", time.Hour).Issue("identity-1", "wallet-1")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		WalletAddress: "wallet-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "identity-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "identity-1"},
	}).SignedString([]byte("secret"))

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "identity-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "identity-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	parts := strings.Split(valid, ".")
	corrupted := parts[0] + "." + parts[1] + "x." + parts[2]

	cases := map[string]string{
		"forged":     forged,
		"expired":    expired,
		"no expiry":  noExpiry,
		"wrong alg":  wrongAlg,
		"none alg":   noneAlg,
		"corrupted":  corrupted,
		"garbage":    "not.a.token",
		"empty":      "",
		"no subject": mustSign(t, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Parse(tok)
			if !errors.Is(err, apperr.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func mustSign(t *testing.T, claims auth.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}
