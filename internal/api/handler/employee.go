package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// EmployeeHandler handles /api/v1/employees.
type EmployeeHandler struct {
	emps *service.EmployeeService
}

func NewEmployeeHandler(emps *service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{emps: emps}
}

func employeeResource(e *model.Employee) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "employee",
		ID:   e.ID,
		Attributes: map[string]any{
			"number":            e.Number,
			"organization_id":   e.OrganizationID,
			"user_id":           e.UserID,
			"department_id":     e.DepartmentID,
			"manager_id":        e.ManagerID,
			"position":          e.Position,
			"employment_status": e.EmploymentStatus,
			"monthly_salary":    e.MonthlySalary.String(),
			"hired_at":          e.HiredAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/employees.
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateEmployeeInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	emp, err := h.emps.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, employeeResource(emp))
}

// List handles GET /api/v1/employees.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.EmployeeFilter{
		Status:       r.URL.Query().Get("status"),
		DepartmentID: r.URL.Query().Get("department_id"),
	}
	emps, err := h.emps.List(r.Context(), middleware.ScopeFromContext(r.Context()), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(emps))
	for i := range emps {
		data = append(data, employeeResource(&emps[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/employees/{id}.
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.emps.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(emp))
}

// Update handles PATCH /api/v1/employees/{id}.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateEmployeeInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	emp, err := h.emps.Update(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(emp))
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ChangeStatus handles POST /api/v1/employees/{id}/status.
func (h *EmployeeHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	emp, err := h.emps.ChangeStatus(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.Status, req.Reason)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(emp))
}

// History handles GET /api/v1/employees/{id}/history.
func (h *EmployeeHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changes, err := h.emps.History(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	renderHistory(w, changes, err)
}
