package authz

import (
	"github.com/crewdeck/crewdeck/internal/apperr"
)

// Action is the operation being authorized against a single entity.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
	ActionTransition
	ActionComment
)

// Policy parameterizes the entity access guard for one entity type.
// Every module shares the same predicate; only the policy differs.
type Policy struct {
	Entity      string       // resource name used in not-found errors
	AdminCaps   []Capability // any of these grants full access within scope
	OwnerIDs    []string     // user IDs that own the specific entity instance
	AssigneeIDs []string     // user IDs the entity is assigned to
}

// Can authorizes action on a single entity, evaluated in precedence order:
//
//  1. the entity's organization must be inside the actor's scope — a miss
//     is reported as not-found so existence never leaks across tenants;
//  2. an admin capability grants everything;
//  3. an owner may read, update, comment and transition, never delete;
//  4. an assignee may read, comment and transition, never update or delete;
//  5. otherwise forbidden.
func Can(a Actor, s Scope, entityOrgID string, p Policy, action Action) error {
	if !s.Covers(entityOrgID) {
		return apperr.NotFound(p.Entity)
	}
	for _, c := range p.AdminCaps {
		if a.Can(c) {
			return nil
		}
	}
	if contains(p.OwnerIDs, a.UserID) {
		switch action {
		case ActionRead, ActionUpdate, ActionComment, ActionTransition:
			return nil
		}
	}
	if contains(p.AssigneeIDs, a.UserID) {
		switch action {
		case ActionRead, ActionComment, ActionTransition:
			return nil
		}
	}
	return apperr.Forbidden("not permitted to access this " + p.Entity)
}

// Require is the guard for collection-level operations that have no single
// entity yet (creation, listing of admin-only resources): it demands one of
// the capabilities outright.
func Require(a Actor, caps ...Capability) error {
	for _, c := range caps {
		if a.Can(c) {
			return nil
		}
	}
	return apperr.Forbidden("missing required capability")
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v != "" && v == id {
			return true
		}
	}
	return false
}
