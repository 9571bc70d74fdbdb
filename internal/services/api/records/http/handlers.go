// Package http provides http transport for records
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"backplane/internal/core/record"
	"backplane/internal/modkit/httpkit"
	"backplane/internal/services/api/records/domain"
	svc "backplane/internal/services/api/records/service"
)

// Register mounts records endpoints on the given router. The module prefix
// carries the {entityType} URL param; ids ride as a second param
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/{id}", h.get)
	httpkit.PostJSON[record.Record](r, "/", h.create)
	httpkit.PostJSON[domain.QueryInput](r, "/query", h.query)
	httpkit.PostJSON[domain.NearbyInput](r, "/nearby", h.nearby)
	httpkit.PostJSON[domain.PageInput](r, "/page", h.page)
	r.Patch("/{id}", httpkit.JSON(h.patch))
	r.Delete("/{id}", httpkit.Handle(h.del))
}

type handlers struct{ svc svc.Service }

func entityType(r *stdhttp.Request) string { return chi.URLParam(r, "entityType") }

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), entityType(r), chi.URLParam(r, "id"))
}

func (h *handlers) create(r *stdhttp.Request, in record.Record) (any, error) {
	rec, err := h.svc.Create(r.Context(), entityType(r), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(rec), nil
}

func (h *handlers) query(r *stdhttp.Request, in domain.QueryInput) (any, error) {
	return h.svc.List(r.Context(), entityType(r), in)
}

func (h *handlers) nearby(r *stdhttp.Request, in domain.NearbyInput) (any, error) {
	return h.svc.Nearby(r.Context(), entityType(r), in)
}

func (h *handlers) page(r *stdhttp.Request, in domain.PageInput) (any, error) {
	return h.svc.Page(r.Context(), entityType(r), in)
}

func (h *handlers) patch(r *stdhttp.Request, in record.Record) (any, error) {
	return h.svc.Update(r.Context(), entityType(r), chi.URLParam(r, "id"), in)
}

func (h *handlers) del(r *stdhttp.Request) httpkit.Response {
	if err := h.svc.Delete(r.Context(), entityType(r), chi.URLParam(r, "id")); err != nil {
		return httpkit.Error(err)
	}
	return httpkit.NoContent()
}
