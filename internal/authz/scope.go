package authz

import "gorm.io/gorm"

// Scope is the set of organizations a request may touch. It is resolved
// once per request from the actor and passed explicitly into services.
type Scope struct {
	AllOrganizations bool
	OrganizationID   string // the sole visible organization when not AllOrganizations
}

// ResolveScope narrows visibility for an actor:
//   - holders of org:manage_all see every organization;
//   - actors bound to an organization see exactly that one;
//   - everyone else sees none.
//
// The resolution has no side effects and is safe to call repeatedly.
func ResolveScope(a Actor) Scope {
	if a.Can(CapManageAllOrgs) {
		return Scope{AllOrganizations: true}
	}
	if a.OrganizationID != "" {
		return Scope{OrganizationID: a.OrganizationID}
	}
	return Scope{}
}

// IsNone reports whether the scope covers no organization at all.
// List endpoints treat this as an empty result; detail and mutation
// endpoints treat it as not-found.
func (s Scope) IsNone() bool {
	return !s.AllOrganizations && s.OrganizationID == ""
}

// Covers reports whether the given organization is visible in this scope.
func (s Scope) Covers(orgID string) bool {
	if s.AllOrganizations {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == orgID
}

// Filter applies the scope to a query on a table with an organization_id
// column. A none scope yields an always-false predicate so listings come
// back empty rather than leaking cross-tenant rows.
func (s Scope) Filter(q *gorm.DB) *gorm.DB {
	if s.AllOrganizations {
		return q
	}
	if s.OrganizationID == "" {
		return q.Where("1 = 0")
	}
	return q.Where("organization_id = ?", s.OrganizationID)
}
