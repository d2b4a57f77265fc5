package httpapi

import (
	"net/http"
	"strings"
)

func (a *API) handleCountries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	items, err := a.services.Geo.Countries(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /v1/geo/countries/{id}/states
func (a *API) handleCountryStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/geo/countries/")
	idPart, tail, _ := strings.Cut(rest, "/")
	if tail != "states" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, err := parseID(idPart)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.services.Geo.States(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /v1/geo/states/{id}/cities
func (a *API) handleStateCities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/geo/states/")
	idPart, tail, _ := strings.Cut(rest, "/")
	if tail != "cities" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, err := parseID(idPart)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.services.Geo.Cities(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
