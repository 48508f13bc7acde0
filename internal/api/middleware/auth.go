// Package middleware provides HTTP middleware for Crewdeck.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
)

type contextKey string

const (
	claimsKey contextKey = "auth_claims"
	actorKey  contextKey = "auth_actor"
	scopeKey  contextKey = "auth_scope"
)

// RequireAuth validates the Bearer JWT in the Authorization header and
// confirms the account is still active. On success it injects the claims,
// the resolved actor and the organization scope into the request context;
// the scope is resolved exactly once here and handlers pass it down.
// On failure it writes a 401 JSON:API error response.
func RequireAuth(secret string, db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"missing_token", "Unauthorized", "Authorization header is required")
				return
			}

			claims, err := auth.ParseAccessToken(token, secret)
			if err != nil {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"invalid_token", "Unauthorized", "access token is invalid or expired")
				return
			}

			var count int64
			err = db.WithContext(r.Context()).Model(&model.User{}).
				Where("id = ? AND deactivated_at IS NULL", claims.UserID).
				Count(&count).Error
			if err != nil || count == 0 {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"invalid_token", "Unauthorized", "account is unknown or deactivated")
				return
			}

			actor := authz.NewActor(claims.UserID, claims.Role, claims.OrganizationID)
			scope := authz.ResolveScope(actor)

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, actorKey, actor)
			ctx = context.WithValue(ctx, scopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts Claims from the request context.
// Returns nil if not present.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	v := ctx.Value(claimsKey)
	if v == nil {
		return nil
	}
	c, _ := v.(*auth.Claims)
	return c
}

// ActorFromContext extracts the resolved actor. The zero Actor holds no
// capabilities, so a missing value fails closed.
func ActorFromContext(ctx context.Context) authz.Actor {
	a, _ := ctx.Value(actorKey).(authz.Actor)
	return a
}

// ScopeFromContext extracts the request's organization scope. The zero
// Scope covers nothing.
func ScopeFromContext(ctx context.Context) authz.Scope {
	s, _ := ctx.Value(scopeKey).(authz.Scope)
	return s
}

// RequireCapability checks that the authenticated actor holds one of the
// given capability tags. Must be chained after RequireAuth.
func RequireCapability(caps ...authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ClaimsFromContext(r.Context()) == nil {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"missing_token", "Unauthorized", "authentication required")
				return
			}
			actor := ActorFromContext(r.Context())
			for _, c := range caps {
				if actor.Can(c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonapi.RenderError(w, http.StatusForbidden,
				"forbidden", "Forbidden", "your role does not grant this operation")
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
