package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// UserHandler handles /api/v1/users and /api/v1/roles.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func userResource(u *model.User) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "user",
		ID:   u.ID,
		Attributes: map[string]any{
			"email":           u.Email,
			"name":            u.Name,
			"role":            u.Role,
			"organization_id": u.OrganizationID,
			"deactivated_at":  timePtr(u.DeactivatedAt),
			"created_at":      u.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateUserInput
	if !decodeBody(w, r, &input) {
		return
	}
	ctx := r.Context()
	user, err := h.users.Create(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), input)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, userResource(user))
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.users.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(users))
	for i := range users {
		data = append(data, userResource(&users[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Get handles GET /api/v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.Get(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, userResource(user))
}

// Me handles GET /api/v1/auth/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorFromContext(ctx)
	user, err := h.users.Get(ctx, actor, middleware.ScopeFromContext(ctx), actor.UserID)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, userResource(user))
}

// Deactivate handles DELETE /api/v1/users/{id}.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.users.Deactivate(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), r.PathValue("id"))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoles handles GET /api/v1/roles.
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.users.ListRoles(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(roles))
	for _, role := range roles {
		data = append(data, jsonapi.ResourceObject{
			Type: "role",
			ID:   role.Name,
			Attributes: map[string]any{
				"capabilities": role.Capabilities,
			},
		})
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}
