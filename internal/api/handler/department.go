package handler

import (
	"net/http"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// DepartmentHandler handles /api/v1/departments.
type DepartmentHandler struct {
	depts *service.DepartmentService
}

func NewDepartmentHandler(depts *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{depts: depts}
}

func departmentResource(d *model.Department) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "department",
		ID:   d.ID,
		Attributes: map[string]any{
			"number":          d.Number,
			"organization_id": d.OrganizationID,
			"name":            d.Name,
			"manager_id":      d.ManagerID,
		},
	}
}

// Create handles POST /api/v1/departments.
func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.DepartmentInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	dept, err := h.depts.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, departmentResource(dept))
}

// List handles GET /api/v1/departments.
func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	depts, err := h.depts.List(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(depts))
	for i := range depts {
		data = append(data, departmentResource(&depts[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/departments/{id}.
func (h *DepartmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	dept, err := h.depts.Get(r.Context(), middleware.ScopeFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, departmentResource(dept))
}

// Update handles PATCH /api/v1/departments/{id}.
func (h *DepartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.DepartmentInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	dept, err := h.depts.Update(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, departmentResource(dept))
}

// Delete handles DELETE /api/v1/departments/{id}.
func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.depts.Delete(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
