// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"net/http"

	"github.com/crewdeck/crewdeck/internal/api/handler"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/health"
	"gorm.io/gorm"
)

// Handlers bundles every resource handler the router mounts.
type Handlers struct {
	Health        *health.Handler
	Auth          *handler.AuthHandler
	Organizations *handler.OrganizationHandler
	Users         *handler.UserHandler
	Departments   *handler.DepartmentHandler
	Employees     *handler.EmployeeHandler
	Tickets       *handler.TicketHandler
	Leaves        *handler.LeaveHandler
	Expenses      *handler.ExpenseHandler
	Payroll       *handler.PayrollHandler
	Attendance    *handler.AttendanceHandler
	Assets        *handler.AssetHandler
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers, jwtSecret string, db *gorm.DB) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.Health.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)

	// Everything below requires a valid access token; RequireAuth resolves
	// the actor and organization scope once per request.
	protected := middleware.RequireAuth(jwtSecret, db)
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protected(fn))
	}

	route("POST /api/v1/auth/logout", h.Auth.Logout)
	route("GET /api/v1/auth/me", h.Users.Me)
	route("GET /api/v1/me", h.Users.Me)

	route("POST /api/v1/organizations", h.Organizations.Create)
	route("GET /api/v1/organizations", h.Organizations.List)
	route("GET /api/v1/organizations/{id}", h.Organizations.Get)
	route("PATCH /api/v1/organizations/{id}", h.Organizations.Update)
	route("POST /api/v1/organizations/{id}/client-admin", h.Organizations.AssignClientAdmin)
	route("POST /api/v1/organizations/{id}/hr-account-manager", h.Organizations.AssignHRAccountManager)

	route("POST /api/v1/users", h.Users.Create)
	route("GET /api/v1/users", h.Users.List)
	route("GET /api/v1/users/{id}", h.Users.Get)
	route("DELETE /api/v1/users/{id}", h.Users.Deactivate)
	route("GET /api/v1/roles", h.Users.ListRoles)

	route("POST /api/v1/departments", h.Departments.Create)
	route("GET /api/v1/departments", h.Departments.List)
	route("GET /api/v1/departments/{id}", h.Departments.Get)
	route("PATCH /api/v1/departments/{id}", h.Departments.Update)
	route("DELETE /api/v1/departments/{id}", h.Departments.Delete)

	route("POST /api/v1/employees", h.Employees.Create)
	route("GET /api/v1/employees", h.Employees.List)
	route("GET /api/v1/employees/{id}", h.Employees.Get)
	route("PATCH /api/v1/employees/{id}", h.Employees.Update)
	route("POST /api/v1/employees/{id}/status", h.Employees.ChangeStatus)
	route("GET /api/v1/employees/{id}/history", h.Employees.History)
	route("GET /api/v1/employees/{id}/leave-balance", h.Leaves.Balance)

	route("POST /api/v1/tickets", h.Tickets.Create)
	route("GET /api/v1/tickets", h.Tickets.List)
	route("GET /api/v1/tickets/{id}", h.Tickets.Get)
	route("POST /api/v1/tickets/{id}/assign", h.Tickets.Assign)
	route("POST /api/v1/tickets/{id}/transition", h.Tickets.Transition)
	route("POST /api/v1/tickets/{id}/comments", h.Tickets.Comment)
	route("GET /api/v1/tickets/{id}/comments", h.Tickets.Comments)
	route("GET /api/v1/tickets/{id}/history", h.Tickets.History)

	route("POST /api/v1/leave-requests", h.Leaves.Create)
	route("GET /api/v1/leave-requests", h.Leaves.List)
	route("GET /api/v1/leave-requests/{id}", h.Leaves.Get)
	route("POST /api/v1/leave-requests/{id}/approve", h.Leaves.Approve)
	route("POST /api/v1/leave-requests/{id}/reject", h.Leaves.Reject)
	route("POST /api/v1/leave-requests/{id}/cancel", h.Leaves.Cancel)
	route("GET /api/v1/leave-requests/{id}/history", h.Leaves.History)

	route("POST /api/v1/expense-claims", h.Expenses.Create)
	route("GET /api/v1/expense-claims", h.Expenses.List)
	route("GET /api/v1/expense-claims/{id}", h.Expenses.Get)
	route("GET /api/v1/expense-claims/{id}/approvals", h.Expenses.Approvals)
	route("POST /api/v1/expense-claims/{id}/submit", h.Expenses.Submit)
	route("POST /api/v1/expense-claims/{id}/approve", h.Expenses.Approve)
	route("POST /api/v1/expense-claims/{id}/reject", h.Expenses.Reject)
	route("POST /api/v1/expense-claims/{id}/forward", h.Expenses.Forward)
	route("POST /api/v1/expense-claims/{id}/reimburse", h.Expenses.Reimburse)
	route("GET /api/v1/expense-claims/{id}/history", h.Expenses.History)

	route("POST /api/v1/payroll-cycles", h.Payroll.Create)
	route("GET /api/v1/payroll-cycles", h.Payroll.List)
	route("GET /api/v1/payroll-cycles/{id}", h.Payroll.Get)
	route("POST /api/v1/payroll-cycles/{id}/start", h.Payroll.Start)
	route("POST /api/v1/payroll-cycles/{id}/complete", h.Payroll.Complete)
	route("GET /api/v1/payroll-cycles/{id}/entries", h.Payroll.Entries)
	route("GET /api/v1/payroll-cycles/{id}/history", h.Payroll.History)

	route("POST /api/v1/attendance/check-in", h.Attendance.CheckIn)
	route("POST /api/v1/attendance/check-out", h.Attendance.CheckOut)
	route("GET /api/v1/attendance", h.Attendance.List)

	route("POST /api/v1/assets", h.Assets.Create)
	route("GET /api/v1/assets", h.Assets.List)
	route("GET /api/v1/assets/{id}", h.Assets.Get)
	route("POST /api/v1/assets/{id}/assign", h.Assets.Assign)
	route("POST /api/v1/assets/{id}/return", h.Assets.Return)
	route("GET /api/v1/assets/{id}/assignments", h.Assets.Assignments)

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
