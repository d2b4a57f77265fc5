// Package httpapi is the HTTP layer: routing, middleware, request decoding
// and the uniform error envelope. Resource endpoints are generated from the
// generic CRUD service contract; everything irregular gets a dedicated
// handler.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"counselflow.org/internal/auth"
	"counselflow.org/internal/config"
	"counselflow.org/internal/domain"
	"counselflow.org/internal/idp"
	"counselflow.org/internal/model"
	"counselflow.org/internal/obs"
	"counselflow.org/internal/service"
)

const serviceName = "counselflow-api"

// ReadyProbe reports whether the service can take traffic.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	services   *service.Services
	verifier   *auth.Verifier
	provider   *idp.Client
	readyProbe ReadyProbe
	cfg        config.Config
	version    string
}

// New wires all routes.
func New(svcs *service.Services, verifier *auth.Verifier, provider *idp.Client, rp ReadyProbe, cfg config.Config, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		services:   svcs,
		verifier:   verifier,
		provider:   provider,
		readyProbe: rp,
		cfg:        cfg,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	mountResource[model.Company, service.CompanyCreate, service.CompanyUpdate](a, "companies", svcs.Companies, resourceOpts[model.Company]{children: childrenOf(svcs.Companies.Children)})
	mountResource[model.Account, service.AccountCreate, service.AccountUpdate](a, "accounts", svcs.Accounts, resourceOpts[model.Account]{guardWrite: requireAdmin})
	mountResource[model.User, service.UserCreate, service.UserUpdate](a, "users", svcs.Users, resourceOpts[model.User]{})
	mountResource[model.Matter, service.MatterCreate, service.MatterUpdate](a, "matters", svcs.Matters, resourceOpts[model.Matter]{})
	mountResource[model.Risk, service.RiskCreate, service.RiskUpdate](a, "risks", svcs.Risks, resourceOpts[model.Risk]{})
	mountResource[model.Action, service.ActionCreate, service.ActionUpdate](a, "actions", svcs.Actions, resourceOpts[model.Action]{children: childrenOf(svcs.Actions.Children)})
	mountResource[model.Dispute, service.DisputeCreate, service.DisputeUpdate](a, "disputes", svcs.Disputes, resourceOpts[model.Dispute]{})
	mountResource[model.Sector, service.NameCreate, service.NameUpdate](a, "sectors", svcs.Sectors, resourceOpts[model.Sector]{})
	mountResource[model.Category, service.NameCreate, service.NameUpdate](a, "categories", svcs.Categories, resourceOpts[model.Category]{})

	a.mux.HandleFunc("/v1/geo/countries", a.handleCountries)
	a.mux.HandleFunc("/v1/geo/countries/", a.handleCountryStates)
	a.mux.HandleFunc("/v1/geo/states/", a.handleStateCities)

	a.mux.HandleFunc("/v1/dashboard", a.handleDashboard)
	a.mux.HandleFunc("/v1/admin/bootstrap", a.handleAdminBootstrap)
	a.mux.HandleFunc("/v1/admin/users/", a.handleUserPurge)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.cfg.MaxBodyBytes)
	h = RateLimit(h, a.cfg.RateBurst, a.cfg.RatePerSec)
	h = CORS(h, a.cfg.CORSOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps service errors onto HTTP statuses. The sentinel
// chain carries the specific message, so err.Error() is already
// client-presentable for the 4xx cases.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, r, http.StatusBadGateway, "upstream service error")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("identifier must be a positive integer")
	}
	return id, nil
}
