package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// PayrollHandler handles /api/v1/payroll-cycles.
type PayrollHandler struct {
	payroll *service.PayrollService
}

func NewPayrollHandler(payroll *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll}
}

func cycleResource(c *model.PayrollCycle) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "payroll_cycle",
		ID:   c.ID,
		Attributes: map[string]any{
			"number":          c.Number,
			"organization_id": c.OrganizationID,
			"period_start":    c.PeriodStart.UTC().Format("2006-01-02"),
			"period_end":      c.PeriodEnd.UTC().Format("2006-01-02"),
			"status":          c.Status,
			"total_gross":     c.TotalGross.String(),
			"total_overtime":  c.TotalOvertime.String(),
			"entry_count":     c.EntryCount,
			"completed_at":    timePtr(c.CompletedAt),
			"created_at":      c.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/payroll-cycles.
func (h *PayrollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateCycleInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	cycle, err := h.payroll.CreateCycle(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, cycleResource(cycle))
}

// List handles GET /api/v1/payroll-cycles.
func (h *PayrollHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.CycleFilter{Status: r.URL.Query().Get("status")}
	ctx := r.Context()
	cycles, err := h.payroll.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(cycles))
	for i := range cycles {
		data = append(data, cycleResource(&cycles[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/payroll-cycles/{id}.
func (h *PayrollHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycle, err := h.payroll.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, cycleResource(cycle))
}

// Start handles POST /api/v1/payroll-cycles/{id}/start.
func (h *PayrollHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycle, err := h.payroll.Start(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusAccepted, cycleResource(cycle))
}

// Complete handles POST /api/v1/payroll-cycles/{id}/complete.
func (h *PayrollHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycle, err := h.payroll.Complete(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, cycleResource(cycle))
}

// Entries handles GET /api/v1/payroll-cycles/{id}/entries.
func (h *PayrollHandler) Entries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.payroll.Entries(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(entries))
	for _, e := range entries {
		data = append(data, jsonapi.ResourceObject{
			Type: "payroll_entry",
			ID:   e.ID,
			Attributes: map[string]any{
				"cycle_id":       e.CycleID,
				"employee_id":    e.EmployeeID,
				"regular_hours":  e.RegularHours.String(),
				"overtime_hours": e.OvertimeHours.String(),
				"hourly_rate":    e.HourlyRate.String(),
				"regular_pay":    e.RegularPay.String(),
				"overtime_pay":   e.OvertimePay.String(),
				"gross_pay":      e.GrossPay.String(),
			},
		})
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// History handles GET /api/v1/payroll-cycles/{id}/history.
func (h *PayrollHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changes, err := h.payroll.History(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	renderHistory(w, changes, err)
}
