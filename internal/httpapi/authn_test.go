package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"counselflow.org/internal/auth"
	"counselflow.org/internal/config"
	"counselflow.org/internal/model"
	"counselflow.org/internal/service"
)

const testSecret = "authn-test-secret"

type testEnv struct {
	api     *API
	svcs    *service.Services
	account *model.Account
	user    *model.User
}

func newAuthEnv(t *testing.T) *testEnv {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, m := range []any{
		(*model.Country)(nil),
		(*model.State)(nil),
		(*model.City)(nil),
		(*model.Sector)(nil),
		(*model.Category)(nil),
		(*model.Company)(nil),
		(*model.CompanyClosure)(nil),
		(*model.Account)(nil),
		(*model.User)(nil),
		(*model.Matter)(nil),
		(*model.MatterAssignee)(nil),
		(*model.Risk)(nil),
		(*model.Action)(nil),
		(*model.ActionClosure)(nil),
		(*model.Dispute)(nil),
		(*model.DisputeParty)(nil),
		(*model.DisputeClaim)(nil),
	} {
		if _, err := db.NewCreateTable().Model(m).Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	svcs := service.New(db, nil)
	co, err := svcs.Companies.Create(ctx, service.CompanyCreate{Name: "Acme", Kind: model.CompanyClient})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	acc, err := svcs.Accounts.Create(ctx, service.AccountCreate{CompanyID: co.ID})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	user, err := svcs.Users.Create(ctx, service.UserCreate{
		AccountID: acc.ID,
		CompanyID: co.ID,
		Email:     "counsel@acme.test",
		Password:  "pw",
		Role:      model.RoleLegal,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	verifier := auth.NewVerifier(nil, testSecret, "", "")
	cfg := config.Config{RateBurst: 100, RatePerSec: 100, MaxBodyBytes: 1 << 20}
	api := New(svcs, verifier, nil, ReadyProbe{}, cfg, "test")
	return &testEnv{api: api, svcs: svcs, account: acc, user: user}
}

// adminUser creates a second platform user carrying the ADMIN role.
func (e *testEnv) adminUser(t *testing.T) *model.User {
	t.Helper()
	admin, err := e.svcs.Users.Create(context.Background(), service.UserCreate{
		AccountID: e.account.ID,
		CompanyID: e.account.CompanyID,
		Email:     "root@acme.test",
		Password:  "pw",
		Role:      model.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return admin
}

func (e *testEnv) token(t *testing.T, subject string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPublicPathsSkipAuth(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestUnknownSubjectRejected(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|0f67a1a0-9f55-4a7e-92d8-7e2f3a9c2b11"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown subject, got %d", rr.Code)
	}
}

func TestAdminBootstrapRequiresAdminRole(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()

	// Legal-role caller is refused.
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/bootstrap", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAccountMutationRequiresAdminRole(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()
	path := "/v1/accounts/" + strconv.FormatInt(env.account.ID, 10)

	// Legal-role caller may read but not mutate accounts.
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"organization_size":"LLC"}`))
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin patch, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for non-admin read, got %d: %s", rr.Code, rr.Body.String())
	}

	admin := env.adminUser(t)
	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"organization_size":"LLC"}`))
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+admin.ExternalID.String()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin patch, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUserPurgeAdminOnly(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()
	admin := env.adminUser(t)
	path := "/v1/admin/users/" + strconv.FormatInt(env.user.ID, 10)

	req := httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin purge, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+admin.ExternalID.String()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin purge, got %d: %s", rr.Code, rr.Body.String())
	}

	// The purged user's token no longer resolves.
	req = httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "counselflow-db|"+env.user.ExternalID.String()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after purge, got %d", rr.Code)
	}
}

func TestMalformedBearerHeader(t *testing.T) {
	env := newAuthEnv(t)
	h := env.api.Handler()

	for _, header := range []string{"Basic abc", "Bearer ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
}
