package authz_test

import (
	"net/http"
	"testing"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesFor_UnknownRoleGrantsNothing(t *testing.T) {
	assert.Empty(t, authz.CapabilitiesFor("Janitor"))
}

func TestActor_WildcardGrantsEverything(t *testing.T) {
	a := authz.NewActor("u1", authz.RoleSuperAdmin, "")
	assert.True(t, a.Can(authz.CapManageAllOrgs))
	assert.True(t, a.Can(authz.CapRunPayroll))
}

func TestActor_ClientAdminHasNoPlatformCapability(t *testing.T) {
	a := authz.NewActor("u1", authz.RoleClientAdmin, "org-1")
	assert.False(t, a.Can(authz.CapManageAllOrgs))
	assert.True(t, a.Can(authz.CapApproveLeave))
}

func TestResolveScope(t *testing.T) {
	super := authz.ResolveScope(authz.NewActor("u1", authz.RoleSuperAdmin, ""))
	assert.True(t, super.AllOrganizations)
	assert.True(t, super.Covers("any-org"))

	admin := authz.ResolveScope(authz.NewActor("u2", authz.RoleClientAdmin, "org-1"))
	assert.False(t, admin.AllOrganizations)
	assert.True(t, admin.Covers("org-1"))
	assert.False(t, admin.Covers("org-2"))

	orphan := authz.ResolveScope(authz.NewActor("u3", authz.RoleEmployee, ""))
	assert.True(t, orphan.IsNone())
	assert.False(t, orphan.Covers("org-1"))
}

func ticketPolicy(ownerID, assigneeID string) authz.Policy {
	return authz.Policy{
		Entity:      "ticket",
		AdminCaps:   []authz.Capability{authz.CapHandleTickets},
		OwnerIDs:    []string{ownerID},
		AssigneeIDs: []string{assigneeID},
	}
}

func TestCan_ScopeMissReportsNotFound(t *testing.T) {
	a := authz.NewActor("u1", authz.RoleClientAdmin, "org-1")
	s := authz.ResolveScope(a)

	err := authz.Can(a, s, "org-2", ticketPolicy("u1", ""), authz.ActionRead)
	require.Error(t, err)
	// Out-of-scope must be indistinguishable from absent.
	assert.True(t, apperr.IsStatus(err, http.StatusNotFound))
}

func TestCan_AdminCapabilityWithinScope(t *testing.T) {
	a := authz.NewActor("u1", authz.RoleHRAccountManager, "org-1")
	s := authz.ResolveScope(a)

	require.NoError(t, authz.Can(a, s, "org-1", ticketPolicy("someone-else", ""), authz.ActionDelete))
}

func TestCan_OwnerMayReadAndUpdateButNotDelete(t *testing.T) {
	a := authz.NewActor("u1", authz.RoleEmployee, "org-1")
	s := authz.ResolveScope(a)
	p := ticketPolicy("u1", "")

	require.NoError(t, authz.Can(a, s, "org-1", p, authz.ActionRead))
	require.NoError(t, authz.Can(a, s, "org-1", p, authz.ActionUpdate))
	err := authz.Can(a, s, "org-1", p, authz.ActionDelete)
	assert.True(t, apperr.IsStatus(err, http.StatusForbidden))
}

func TestCan_AssigneeMayTransitionButNotUpdate(t *testing.T) {
	a := authz.NewActor("u2", authz.RoleEmployee, "org-1")
	s := authz.ResolveScope(a)
	p := ticketPolicy("someone-else", "u2")

	require.NoError(t, authz.Can(a, s, "org-1", p, authz.ActionTransition))
	require.NoError(t, authz.Can(a, s, "org-1", p, authz.ActionComment))
	err := authz.Can(a, s, "org-1", p, authz.ActionUpdate)
	assert.True(t, apperr.IsStatus(err, http.StatusForbidden))
}

func TestCan_StrangerForbidden(t *testing.T) {
	a := authz.NewActor("u3", authz.RoleEmployee, "org-1")
	s := authz.ResolveScope(a)

	err := authz.Can(a, s, "org-1", ticketPolicy("owner", "assignee"), authz.ActionRead)
	assert.True(t, apperr.IsStatus(err, http.StatusForbidden))
}

func TestRequire(t *testing.T) {
	admin := authz.NewActor("u1", authz.RoleClientAdmin, "org-1")
	require.NoError(t, authz.Require(admin, authz.CapManageEmployees))

	emp := authz.NewActor("u2", authz.RoleEmployee, "org-1")
	err := authz.Require(emp, authz.CapManageEmployees)
	assert.True(t, apperr.IsStatus(err, http.StatusForbidden))
}
