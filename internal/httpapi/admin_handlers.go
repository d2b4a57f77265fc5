package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"counselflow.org/internal/audit"
)

// GET /v1/dashboard?company_id=N
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	var companyID int64
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		companyID = id
	}
	summary, err := a.services.Dashboard.Summary(r.Context(), companyID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type adminBootstrapRequest struct {
	CompanyID int64 `json:"company_id"`
}

// handleAdminBootstrap creates the platform admin account if none exists yet.
// Idempotent: repeated calls return the existing account.
func (a *API) handleAdminBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := requireAdmin(r); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req adminBootstrapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyID <= 0 {
		writeError(w, r, http.StatusBadRequest, "company_id is required")
		return
	}
	acc, err := a.services.Accounts.EnsureAdminAccount(r.Context(), req.CompanyID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.bootstrap", map[string]any{
		"account_id": strconv.FormatInt(acc.ID, 10),
	})
	writeJSON(w, http.StatusOK, acc)
}

// DELETE /v1/admin/users/{id} — removes the user permanently, provider mirror
// included. Soft delete stays local so restored users keep working
// credentials; this is the one path that reaches into the provider.
func (a *API) handleUserPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := requireAdmin(r); err != nil {
		handleDomainError(w, r, err)
		return
	}
	id, err := parseID(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.services.Users.Purge(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "users.purge", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
