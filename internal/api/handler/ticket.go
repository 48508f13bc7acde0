package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// TicketHandler handles /api/v1/tickets.
type TicketHandler struct {
	tickets *service.TicketService
}

func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func ticketResource(t *model.Ticket) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "ticket",
		ID:   t.ID,
		Attributes: map[string]any{
			"number":          t.Number,
			"organization_id": t.OrganizationID,
			"requester_id":    t.RequesterID,
			"assigned_to_id":  t.AssignedToID,
			"subject":         t.Subject,
			"description":     t.Description,
			"priority":        t.Priority,
			"status":          t.Status,
			"response_due":    t.ResponseDue.UTC().Format(time.RFC3339),
			"resolution_due":  t.ResolutionDue.UTC().Format(time.RFC3339),
			"resolved_at":     timePtr(t.ResolvedAt),
			"resolved_by":     t.ResolvedBy,
			"created_at":      t.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/tickets.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTicketInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	tk, err := h.tickets.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, ticketResource(tk))
}

// List handles GET /api/v1/tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.TicketFilter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
	}
	ctx := r.Context()
	tickets, err := h.tickets.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(tickets))
	for i := range tickets {
		data = append(data, ticketResource(&tickets[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/tickets/{id}.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tk, err := h.tickets.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, ticketResource(tk))
}

type assignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// Assign handles POST /api/v1/tickets/{id}/assign.
func (h *TicketHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	tk, err := h.tickets.Assign(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.AssigneeID)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, ticketResource(tk))
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Transition handles POST /api/v1/tickets/{id}/transition.
func (h *TicketHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	tk, err := h.tickets.Transition(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.Status, req.Reason)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, ticketResource(tk))
}

type commentRequest struct {
	Body string `json:"body"`
}

// Comment handles POST /api/v1/tickets/{id}/comments.
func (h *TicketHandler) Comment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	comment, err := h.tickets.Comment(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"), req.Body)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, jsonapi.ResourceObject{
		Type: "ticket_comment",
		ID:   comment.ID,
		Attributes: map[string]any{
			"ticket_id":  comment.TicketID,
			"author_id":  comment.AuthorID,
			"body":       comment.Body,
			"created_at": comment.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

// Comments handles GET /api/v1/tickets/{id}/comments.
func (h *TicketHandler) Comments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comments, err := h.tickets.Comments(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(comments))
	for _, c := range comments {
		data = append(data, jsonapi.ResourceObject{
			Type: "ticket_comment",
			ID:   c.ID,
			Attributes: map[string]any{
				"ticket_id":  c.TicketID,
				"author_id":  c.AuthorID,
				"body":       c.Body,
				"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
			},
		})
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// History handles GET /api/v1/tickets/{id}/history.
func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changes, err := h.tickets.History(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	renderHistory(w, changes, err)
}
