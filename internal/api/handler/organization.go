package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// OrganizationHandler handles /api/v1/organizations.
type OrganizationHandler struct {
	orgs *service.OrganizationService
}

func NewOrganizationHandler(orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

func organizationResource(o *model.Organization) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "organization",
		ID:   o.ID,
		Attributes: map[string]any{
			"number":                o.Number,
			"name":                  o.Name,
			"address":               o.Address,
			"subscription_plan":     o.SubscriptionPlan,
			"client_admin_id":       o.ClientAdminID,
			"hr_account_manager_id": o.HRAccountManagerID,
			"payroll_cycle":         o.PayrollCycle,
			"pto_allocation":        o.PTOAllocation,
			"exclude_weekends":      o.ExcludeWeekends,
			"created_at":            o.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/organizations.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateOrganizationInput
	if !decodeBody(w, r, &input) {
		return
	}
	org, err := h.orgs.Create(r.Context(), middleware.ActorFromContext(r.Context()), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, organizationResource(org))
}

// List handles GET /api/v1/organizations.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(orgs))
	for i := range orgs {
		data = append(data, organizationResource(&orgs[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/organizations/{id}.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgs.Get(r.Context(), middleware.ScopeFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, organizationResource(org))
}

// Update handles PATCH /api/v1/organizations/{id}.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateOrganizationInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	org, err := h.orgs.Update(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, organizationResource(org))
}

type assignUserRequest struct {
	UserID string `json:"user_id"`
}

// AssignClientAdmin handles POST /api/v1/organizations/{id}/client-admin.
func (h *OrganizationHandler) AssignClientAdmin(w http.ResponseWriter, r *http.Request) {
	var req assignUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := h.orgs.AssignClientAdmin(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("id"), req.UserID)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, organizationResource(org))
}

// AssignHRAccountManager handles POST /api/v1/organizations/{id}/hr-account-manager.
func (h *OrganizationHandler) AssignHRAccountManager(w http.ResponseWriter, r *http.Request) {
	var req assignUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := h.orgs.AssignHRAccountManager(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("id"), req.UserID)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, organizationResource(org))
}
