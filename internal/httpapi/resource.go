package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"counselflow.org/internal/audit"
	"counselflow.org/internal/crud"
)

// entityID reads the int64 ID field every entity model carries. The resource
// factory is generic, so this is the one place reflection is cheaper than
// threading an accessor through every service.
func entityID(entity any) int64 {
	v := reflect.Indirect(reflect.ValueOf(entity))
	if v.Kind() != reflect.Struct {
		return 0
	}
	f := v.FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.Int64 {
		return 0
	}
	return f.Int()
}

// childrenFunc serves a tree resource's direct children sub-collection.
type childrenFunc func(ctx context.Context, id int64) (any, error)

// childrenOf adapts a typed children lookup to the resource hook.
func childrenOf[T any](fn func(ctx context.Context, id int64) ([]*T, error)) childrenFunc {
	return func(ctx context.Context, id int64) (any, error) {
		return fn(ctx, id)
	}
}

// resource binds one entity's CRUD service to its URL space:
//
//	GET    /v1/<name>               list (paged, filtered)
//	POST   /v1/<name>               create
//	GET    /v1/<name>/{id}          fetch
//	PATCH  /v1/<name>/{id}          partial update
//	DELETE /v1/<name>/{id}          soft delete
//	POST   /v1/<name>/{id}/restore  undo soft delete
//	GET    /v1/<name>/{id}/children direct children (tree resources only)
type resource[T, C, U any] struct {
	api      *API
	name     string
	svc      crud.Service[T, C, U]
	children childrenFunc
	present  func(*T) any
	guard    func(*http.Request) error
}

// resourceOpts tunes the generated surface per resource.
type resourceOpts[T any] struct {
	// children serves GET /{id}/children for tree resources.
	children childrenFunc
	// present maps an entity onto its response shape; nil keeps the entity.
	present func(*T) any
	// guardWrite gates POST/PATCH/DELETE/restore; nil leaves them open.
	guardWrite func(*http.Request) error
}

func mountResource[T, C, U any](a *API, name string, svc crud.Service[T, C, U], opts resourceOpts[T]) {
	rs := &resource[T, C, U]{
		api:      a,
		name:     name,
		svc:      svc,
		children: opts.children,
		present:  opts.present,
		guard:    opts.guardWrite,
	}
	a.mux.HandleFunc("/v1/"+name, rs.handleCollection)
	a.mux.HandleFunc("/v1/"+name+"/", rs.handleItem)
}

// respond applies the optional response mapper.
func (rs *resource[T, C, U]) respond(entity *T) any {
	if rs.present == nil {
		return entity
	}
	return rs.present(entity)
}

// allowWrite enforces the mutation guard; a refusal is already written.
func (rs *resource[T, C, U]) allowWrite(w http.ResponseWriter, r *http.Request) bool {
	if rs.guard == nil {
		return true
	}
	if err := rs.guard(r); err != nil {
		handleDomainError(w, r, err)
		return false
	}
	return true
}

func (rs *resource[T, C, U]) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rs.list(w, r)
	case http.MethodPost:
		if !rs.allowWrite(w, r) {
			return
		}
		rs.create(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (rs *resource[T, C, U]) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/"+rs.name+"/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := parseID(idPart)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			rs.fetch(w, r, id)
		case http.MethodPatch:
			if !rs.allowWrite(w, r) {
				return
			}
			rs.update(w, r, id)
		case http.MethodDelete:
			if !rs.allowWrite(w, r) {
				return
			}
			rs.remove(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "restore":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if !rs.allowWrite(w, r) {
			return
		}
		rs.restore(w, r, id)
	case "children":
		if rs.children == nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		rs.listChildren(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (rs *resource[T, C, U]) list(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromURL(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := rs.svc.Find(r.Context(), q)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if rs.present == nil {
		writeJSON(w, http.StatusOK, page)
		return
	}
	items := make([]any, len(page.Items))
	for i, it := range page.Items {
		items[i] = rs.present(it)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

func (rs *resource[T, C, U]) create(w http.ResponseWriter, r *http.Request) {
	var req C
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entity, err := rs.svc.Create(r.Context(), req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	id := entityID(entity)
	_ = audit.LogEvent(r.Context(), rs.name+".create", map[string]any{"id": id})
	w.Header().Set("Location", "/v1/"+rs.name+"/"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusCreated, rs.respond(entity))
}

func (rs *resource[T, C, U]) fetch(w http.ResponseWriter, r *http.Request, id int64) {
	entity, err := rs.svc.FindOne(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs.respond(entity))
}

func (rs *resource[T, C, U]) update(w http.ResponseWriter, r *http.Request, id int64) {
	var req U
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entity, err := rs.svc.Update(r.Context(), id, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), rs.name+".update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, rs.respond(entity))
}

func (rs *resource[T, C, U]) remove(w http.ResponseWriter, r *http.Request, id int64) {
	if err := rs.svc.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), rs.name+".delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (rs *resource[T, C, U]) restore(w http.ResponseWriter, r *http.Request, id int64) {
	entity, err := rs.svc.Restore(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), rs.name+".restore", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, rs.respond(entity))
}

func (rs *resource[T, C, U]) listChildren(w http.ResponseWriter, r *http.Request, id int64) {
	items, err := rs.children(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// reserved list-parameter names; everything else becomes a column filter
// checked against the resource whitelist downstream.
var reservedParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"search":    true,
	"sort":      true,
}

func queryFromURL(values url.Values) (crud.Query, error) {
	q := crud.Query{Filters: map[string]string{}}
	if raw := values.Get("page"); raw != "" {
		n, err := parseID(raw)
		if err != nil {
			return q, err
		}
		q.Page = int(n)
	}
	if raw := values.Get("page_size"); raw != "" {
		n, err := parseID(raw)
		if err != nil {
			return q, err
		}
		q.PageSize = int(n)
	}
	q.Search = values.Get("search")
	if sort := values.Get("sort"); sort != "" {
		if strings.HasPrefix(sort, "-") {
			q.Sort = strings.TrimPrefix(sort, "-")
			q.SortDesc = true
		} else {
			q.Sort = sort
		}
	}
	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		q.Filters[key] = vals[0]
	}
	return q, nil
}
