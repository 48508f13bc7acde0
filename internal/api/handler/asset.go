package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// AssetHandler handles /api/v1/assets.
type AssetHandler struct {
	assets *service.AssetService
}

func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

func assetResource(a *model.Asset) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "asset",
		ID:   a.ID,
		Attributes: map[string]any{
			"tag":               a.Tag,
			"organization_id":   a.OrganizationID,
			"name":              a.Name,
			"category":          a.Category,
			"purchase_price":    a.PurchasePrice.String(),
			"residual_value":    a.ResidualValue.String(),
			"useful_life_years": a.UsefulLifeYears,
			"purchased_at":      a.PurchasedAt.UTC().Format("2006-01-02"),
			"status":            a.Status,
		},
	}
}

func assignmentResource(a *model.AssetAssignment) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "asset_assignment",
		ID:   a.ID,
		Attributes: map[string]any{
			"asset_id":    a.AssetID,
			"employee_id": a.EmployeeID,
			"assigned_by": a.AssignedBy,
			"status":      a.Status,
			"assigned_at": a.AssignedAt.UTC().Format(time.RFC3339),
			"returned_at": timePtr(a.ReturnedAt),
		},
	}
}

// Create handles POST /api/v1/assets.
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateAssetInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	asset, err := h.assets.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, assetResource(asset))
}

// List handles GET /api/v1/assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assets.List(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(assets))
	for i := range assets {
		data = append(data, assetResource(&assets[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/assets/{id}; book values ride along as meta.
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.assets.Get(r.Context(), middleware.ScopeFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	resource := assetResource(&valuation.Asset)
	resource.Meta = jsonapi.Meta{
		"years_elapsed":           valuation.YearsElapsed,
		"straight_line_value":     valuation.StraightLineValue.String(),
		"declining_balance_value": valuation.DecliningBalanceValue.String(),
	}
	jsonapi.RenderOne(w, http.StatusOK, resource)
}

type assignAssetRequest struct {
	EmployeeID string `json:"employee_id"`
}

// Assign handles POST /api/v1/assets/{id}/assign.
func (h *AssetHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	assignment, err := h.assets.Assign(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.EmployeeID)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, assignmentResource(assignment))
}

// Return handles POST /api/v1/assets/{id}/return.
func (h *AssetHandler) Return(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assignment, err := h.assets.Return(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, assignmentResource(assignment))
}

// Assignments handles GET /api/v1/assets/{id}/assignments.
func (h *AssetHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assignments, err := h.assets.Assignments(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(assignments))
	for i := range assignments {
		data = append(data, assignmentResource(&assignments[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}
