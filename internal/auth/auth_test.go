package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"counselflow.org/internal/domain"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestVerifyHS256(t *testing.T) {
	v := NewVerifier(nil, testSecret, "https://issuer.test/", "https://api.counselflow.test")

	raw := signHS256(t, jwt.RegisteredClaims{
		Issuer:    "https://issuer.test/",
		Audience:  jwt.ClaimStrings{"https://api.counselflow.test"},
		Subject:   "counselflow-db|6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	claims, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, err := claims.ExternalID()
	if err != nil {
		t.Fatalf("external id: %v", err)
	}
	if id.String() != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Fatalf("unexpected external id: %s", id)
	}
}

func TestVerifyRejectsWrongIssuerAndExpiry(t *testing.T) {
	v := NewVerifier(nil, testSecret, "https://issuer.test/", "")

	wrongIssuer := signHS256(t, jwt.RegisteredClaims{
		Issuer:    "https://evil.test/",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if _, err := v.Verify(context.Background(), wrongIssuer); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong issuer, got %v", err)
	}

	expired := signHS256(t, jwt.RegisteredClaims{
		Issuer:    "https://issuer.test/",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	if _, err := v.Verify(context.Background(), expired); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestExternalIDMalformedSubject(t *testing.T) {
	v := NewVerifier(nil, testSecret, "", "")
	raw := signHS256(t, jwt.RegisteredClaims{
		Subject:   "counselflow-db|not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	claims, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := claims.ExternalID(); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for garbage subject, got %v", err)
	}
}

func TestVerifyRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	const kid = "test-key-1"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = kid
	raw, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewVerifier(NewJWKS(srv.URL, srv.Client()), "", "", "")
	claims, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, err := claims.ExternalID()
	if err != nil {
		t.Fatalf("external id: %v", err)
	}
	if id.String() != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Fatalf("unexpected id: %s", id)
	}

	// Unknown kid inside the refresh window fails fast.
	other := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	other.Header["kid"] = "missing-key"
	rawOther, err := other.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(context.Background(), rawOther); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown kid, got %v", err)
	}
}
