package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// ExpenseHandler handles /api/v1/expense-claims.
type ExpenseHandler struct {
	expenses *service.ExpenseService
}

func NewExpenseHandler(expenses *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

func claimResource(c *model.ExpenseClaim) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "expense_claim",
		ID:   c.ID,
		Attributes: map[string]any{
			"number":          c.Number,
			"organization_id": c.OrganizationID,
			"submitted_by":    c.SubmittedBy,
			"amount":          c.Amount.String(),
			"currency":        c.Currency,
			"category":        c.Category,
			"description":     c.Description,
			"status":          c.Status,
			"reimbursed_at":   timePtr(c.ReimbursedAt),
			"created_at":      c.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/expense-claims.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateClaimInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	claim, err := h.expenses.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, claimResource(claim))
}

// List handles GET /api/v1/expense-claims.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.ClaimFilter{Status: r.URL.Query().Get("status")}
	ctx := r.Context()
	claims, err := h.expenses.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(claims))
	for i := range claims {
		data = append(data, claimResource(&claims[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/expense-claims/{id}.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, err := h.expenses.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, claimResource(claim))
}

// Approvals handles GET /api/v1/expense-claims/{id}/approvals.
func (h *ExpenseHandler) Approvals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	approvals, err := h.expenses.Approvals(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(approvals))
	for _, a := range approvals {
		data = append(data, jsonapi.ResourceObject{
			Type: "expense_approval",
			ID:   a.ID,
			Attributes: map[string]any{
				"claim_id":    a.ClaimID,
				"level":       a.Level,
				"approver_id": a.ApproverID,
				"decision":    a.Decision,
				"comment":     a.Comment,
				"decided_at":  timePtr(a.DecidedAt),
			},
		})
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Submit handles POST /api/v1/expense-claims/{id}/submit.
func (h *ExpenseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, err := h.expenses.Submit(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, claimResource(claim))
}

type decideRequest struct {
	Comment string `json:"comment"`
}

// decide is shared by the approve/reject/forward endpoints; the route fixes
// the decision, the body only carries an optional comment and may be empty.
func (h *ExpenseHandler) decide(w http.ResponseWriter, r *http.Request, decision string) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonapi.RenderError(w, http.StatusBadRequest,
			"invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	ctx := r.Context()
	claim, err := h.expenses.Decide(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), decision, req.Comment)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, claimResource(claim))
}

// Approve handles POST /api/v1/expense-claims/{id}/approve.
func (h *ExpenseHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Approved")
}

// Reject handles POST /api/v1/expense-claims/{id}/reject.
func (h *ExpenseHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Rejected")
}

// Forward handles POST /api/v1/expense-claims/{id}/forward.
func (h *ExpenseHandler) Forward(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Forwarded")
}

// Reimburse handles POST /api/v1/expense-claims/{id}/reimburse.
func (h *ExpenseHandler) Reimburse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, err := h.expenses.Reimburse(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, claimResource(claim))
}

// History handles GET /api/v1/expense-claims/{id}/history.
func (h *ExpenseHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changes, err := h.expenses.History(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	renderHistory(w, changes, err)
}
