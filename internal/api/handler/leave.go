package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// LeaveHandler handles /api/v1/leave-requests and balances.
type LeaveHandler struct {
	leaves *service.LeaveService
}

func NewLeaveHandler(leaves *service.LeaveService) *LeaveHandler {
	return &LeaveHandler{leaves: leaves}
}

func leaveResource(lr *model.LeaveRequest) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "leave_request",
		ID:   lr.ID,
		Attributes: map[string]any{
			"number":          lr.Number,
			"organization_id": lr.OrganizationID,
			"employee_id":     lr.EmployeeID,
			"requester_id":    lr.RequesterID,
			"leave_type":      lr.LeaveType,
			"start_date":      lr.StartDate.UTC().Format("2006-01-02"),
			"end_date":        lr.EndDate.UTC().Format("2006-01-02"),
			"total_days":      lr.TotalDays,
			"reason":          lr.Reason,
			"status":          lr.Status,
			"decided_by":      lr.DecidedBy,
			"decided_at":      timePtr(lr.DecidedAt),
			"created_at":      lr.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/leave-requests.
func (h *LeaveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateLeaveInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	lr, err := h.leaves.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, leaveResource(lr))
}

// List handles GET /api/v1/leave-requests.
func (h *LeaveHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.LeaveFilter{
		Status:     r.URL.Query().Get("status"),
		EmployeeID: r.URL.Query().Get("employee_id"),
	}
	ctx := r.Context()
	requests, err := h.leaves.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(requests))
	for i := range requests {
		data = append(data, leaveResource(&requests[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/leave-requests/{id}.
func (h *LeaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lr, err := h.leaves.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, leaveResource(lr))
}

// Approve handles POST /api/v1/leave-requests/{id}/approve.
func (h *LeaveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lr, err := h.leaves.Approve(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, leaveResource(lr))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/v1/leave-requests/{id}/reject.
func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	lr, err := h.leaves.Reject(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.Reason)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, leaveResource(lr))
}

// Cancel handles POST /api/v1/leave-requests/{id}/cancel.
func (h *LeaveHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lr, err := h.leaves.Cancel(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, leaveResource(lr))
}

// History handles GET /api/v1/leave-requests/{id}/history.
func (h *LeaveHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changes, err := h.leaves.History(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	renderHistory(w, changes, err)
}

// Balance handles GET /api/v1/employees/{id}/leave-balance. The year
// defaults to the current one.
func (h *LeaveHandler) Balance(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil {
			jsonapi.RenderError(w, http.StatusBadRequest, "invalid_parameter", "Bad Request", "year must be an integer")
			return
		}
		year = parsed
	}
	ctx := r.Context()
	balance, err := h.leaves.Balance(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), year)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type: "leave_balance",
		ID:   balance.ID,
		Attributes: map[string]any{
			"employee_id":     balance.EmployeeID,
			"year":            balance.Year,
			"total_allocated": balance.TotalAllocated,
			"used":            balance.Used,
			"carry_forward":   balance.CarryForward,
			"balance":         balance.Balance,
		},
	})
}
