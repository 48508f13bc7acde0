// Package handler contains HTTP handlers grouped by resource. Handlers
// decode the request, pull the actor and scope prepared by the auth
// middleware, delegate to the service layer and render JSON:API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/model"
)

// decodeBody parses the JSON request body into dst. A malformed body is
// reported to the client and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest,
			"invalid_body", "Bad Request", "request body must be valid JSON")
		return false
	}
	return true
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func statusChangeResources(changes []model.StatusChange) []any {
	out := make([]any, 0, len(changes))
	for _, c := range changes {
		out = append(out, jsonapi.ResourceObject{
			Type: "status_change",
			ID:   c.ID,
			Attributes: map[string]any{
				"entity_type": c.EntityType,
				"entity_id":   c.EntityID,
				"status":      c.Status,
				"changed_by":  c.ChangedBy,
				"reason":      c.Reason,
				"changed_at":  c.ChangedAt.UTC().Format(time.RFC3339),
			},
		})
	}
	return out
}

// renderHistory is shared by every workflow resource's history endpoint.
func renderHistory(w http.ResponseWriter, changes []model.StatusChange, err error) {
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderList(w, http.StatusOK, statusChangeResources(changes), nil)
}
