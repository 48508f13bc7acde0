// Package authz implements role-scoped authorization: capability tags,
// per-request organization scope resolution, and the entity access guard
// shared by every module. Guards check capability tags, never role-name
// strings, so adding a role only touches the table in this file.
package authz

// Capability is a tag granted by a role. The wildcard "*" grants all.
type Capability string

const (
	CapAll             Capability = "*"
	CapManageAllOrgs   Capability = "org:manage_all"
	CapManageOrg       Capability = "org:manage"
	CapManageUsers     Capability = "user:manage"
	CapManageEmployees Capability = "employee:manage"
	CapApproveLeave    Capability = "leave:approve"
	CapApproveExpense  Capability = "expense:approve"
	CapRunPayroll      Capability = "payroll:run"
	CapManageAssets    Capability = "asset:manage"
	CapHandleTickets   Capability = "ticket:handle"
)

// Built-in role names.
const (
	RoleSuperAdmin       = "Super Admin"
	RoleClientAdmin      = "Client Admin"
	RoleHRAccountManager = "HR Account Manager"
	RoleEmployee         = "Employee"
)

// builtinRoles maps role names to the capability tags they grant. This
// table is the source of truth for authorization; the Role rows seeded at
// boot mirror it so the capability sets are visible through the roles API.
var builtinRoles = map[string][]Capability{
	RoleSuperAdmin: {CapAll},
	RoleClientAdmin: {
		CapManageOrg,
		CapManageUsers,
		CapManageEmployees,
		CapApproveLeave,
		CapApproveExpense,
		CapRunPayroll,
		CapManageAssets,
		CapHandleTickets,
	},
	RoleHRAccountManager: {
		CapManageEmployees,
		CapApproveLeave,
		CapHandleTickets,
	},
	RoleEmployee: {},
}

// CapabilitiesFor returns the capability set a role name grants.
// Unknown role names grant nothing.
func CapabilitiesFor(role string) []Capability {
	return builtinRoles[role]
}

// BuiltinRoleNames returns all built-in role names, for the role upsert at
// boot.
func BuiltinRoleNames() []string {
	return []string{RoleSuperAdmin, RoleClientAdmin, RoleHRAccountManager, RoleEmployee}
}

// Actor is the authenticated principal acting on a request, with its
// capability set resolved once from the built-in capability table.
type Actor struct {
	UserID         string
	Role           string
	OrganizationID string // empty for platform-level users
	caps           map[Capability]bool
}

// NewActor builds an Actor with capabilities resolved from the built-in
// role table.
func NewActor(userID, role, orgID string) Actor {
	caps := make(map[Capability]bool)
	for _, c := range CapabilitiesFor(role) {
		caps[c] = true
	}
	return Actor{UserID: userID, Role: role, OrganizationID: orgID, caps: caps}
}

// Can reports whether the actor holds the capability (or the wildcard).
func (a Actor) Can(c Capability) bool {
	return a.caps[CapAll] || a.caps[c]
}
