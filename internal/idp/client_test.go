package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"counselflow.org/internal/domain"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Audience:     "https://api.counselflow.test",
		Connection:   "counselflow-db",
	}, srv.Client())
	return client, srv
}

func tokenResponse(w http.ResponseWriter, expiresIn int64) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "mgmt-token",
		"expires_in":   expiresIn,
	})
}

func TestManagementTokenCached(t *testing.T) {
	var tokenCalls int64
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt64(&tokenCalls, 1)
			tokenResponse(w, 3600)
		case "/api/v2/users":
			_ = json.NewEncoder(w).Encode([]map[string]any{})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	if _, err := client.ListUsers(ctx, "a@x.test"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.ListUsers(ctx, "b@x.test"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := atomic.LoadInt64(&tokenCalls); got != 1 {
		t.Fatalf("expected one token request, got %d", got)
	}
}

func TestManagementTokenRefreshedAfterExpiry(t *testing.T) {
	var tokenCalls int64
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt64(&tokenCalls, 1)
			// Expires inside the renewal skew, so every call refetches.
			tokenResponse(w, 1)
		case "/api/v2/users":
			_ = json.NewEncoder(w).Encode([]map[string]any{})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	if _, err := client.ListUsers(ctx, "a@x.test"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.ListUsers(ctx, "b@x.test"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := atomic.LoadInt64(&tokenCalls); got != 2 {
		t.Fatalf("expected token refresh per call, got %d", got)
	}
}

func TestCreateUserConflict(t *testing.T) {
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			tokenResponse(w, 3600)
		case "/api/v2/users":
			w.WriteHeader(http.StatusConflict)
		default:
			http.NotFound(w, r)
		}
	})

	_, err := client.CreateUser(context.Background(), "dup@x.test", "Dup", "pw")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestCreateUserParsesSubject(t *testing.T) {
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			tokenResponse(w, 3600)
		case "/api/v2/users":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_id": "counselflow-db|0f67a1a0-9f55-4a7e-92d8-7e2f3a9c2b11",
				"email":   "new@x.test",
			})
		default:
			http.NotFound(w, r)
		}
	})

	u, err := client.CreateUser(context.Background(), "new@x.test", "New User", "pw")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID.String() != "0f67a1a0-9f55-4a7e-92d8-7e2f3a9c2b11" {
		t.Fatalf("unexpected id: %s", u.ID)
	}
}

func TestPasswordLoginErrors(t *testing.T) {
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.PasswordLogin(context.Background(), "a@x.test", "wrong")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestServerErrorMapsToUpstream(t *testing.T) {
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			tokenResponse(w, 3600)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := client.ListUsers(context.Background(), "a@x.test")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
