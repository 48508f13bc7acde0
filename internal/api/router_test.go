package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/api"
	"github.com/crewdeck/crewdeck/internal/api/handler"
	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/db"
	"github.com/crewdeck/crewdeck/internal/health"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/crewdeck/crewdeck/internal/service"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const jwtSecret = "integration-secret-32-bytes-long"

type testServer struct {
	srv *httptest.Server
	db  *gorm.DB
}

// newTestServer builds the full route table over an in-memory database,
// exactly as cmd/crewdeck wires it minus the job queue.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(model.All()...))

	seq := sequence.New(gdb)
	orgs := service.NewOrganizationService(gdb, seq)
	users := service.NewUserService(gdb)
	depts := service.NewDepartmentService(gdb, seq)
	emps := service.NewEmployeeService(gdb, seq)
	tickets := service.NewTicketService(gdb, seq)
	leaves := service.NewLeaveService(gdb, seq)
	expenses := service.NewExpenseService(gdb, seq)
	payroll := service.NewPayrollService(gdb, seq, nil)
	attendance := service.NewAttendanceService(gdb)
	assets := service.NewAssetService(gdb, seq)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Handlers{
		Health:        health.New(db.NewPinger(gdb)),
		Auth:          handler.NewAuthHandler(gdb, jwtSecret, 15*time.Minute, 24*time.Hour),
		Organizations: handler.NewOrganizationHandler(orgs),
		Users:         handler.NewUserHandler(users),
		Departments:   handler.NewDepartmentHandler(depts),
		Employees:     handler.NewEmployeeHandler(emps),
		Tickets:       handler.NewTicketHandler(tickets),
		Leaves:        handler.NewLeaveHandler(leaves),
		Expenses:      handler.NewExpenseHandler(expenses),
		Payroll:       handler.NewPayrollHandler(payroll),
		Attendance:    handler.NewAttendanceHandler(attendance),
		Assets:        handler.NewAssetHandler(assets),
	}, jwtSecret, gdb)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, db: gdb}
}

func (ts *testServer) seedUser(t *testing.T, email, password, role string, orgID *string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &model.User{Email: email, Name: "Test " + role, PasswordHash: hash, Role: role, OrganizationID: orgID}
	require.NoError(t, ts.db.Create(u).Error)
	return u
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeDoc(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	data := doc["data"].(map[string]any)
	attrs := data["attributes"].(map[string]any)
	token, _ := attrs["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = ts.request(t, http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/organizations", "/api/v1/employees", "/api/v1/tickets"} {
		resp := ts.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestLoginAndRefreshFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "root@example.com", "correct-horse", authz.RoleSuperAdmin, nil)

	// Wrong password never authenticates.
	resp := ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "root@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "root@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	attrs := doc["data"].(map[string]any)["attributes"].(map[string]any)
	refreshToken := attrs["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	// Rotate the refresh token for a fresh access token.
	resp = ts.request(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": refreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = decodeDoc(t, resp)
	attrs = doc["data"].(map[string]any)["attributes"].(map[string]any)
	assert.NotEmpty(t, attrs["access_token"])

	// The old refresh token is spent after rotation.
	resp = ts.request(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": refreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestOrganizationCreate_CapabilityEnforcedOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "root@example.com", "platform-pass", authz.RoleSuperAdmin, nil)

	org := &model.Organization{Number: 100, Name: "Acme"}
	require.NoError(t, ts.db.Create(org).Error)
	ts.seedUser(t, "emp@acme.com", "employee-pass", authz.RoleEmployee, &org.ID)

	body := map[string]string{"name": "Globex", "subscription_plan": "premium"}

	empToken := ts.login(t, "emp@acme.com", "employee-pass")
	resp := ts.request(t, http.MethodPost, "/api/v1/organizations", empToken, body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	rootToken := ts.login(t, "root@example.com", "platform-pass")
	resp = ts.request(t, http.MethodPost, "/api/v1/organizations", rootToken, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decodeDoc(t, resp)
	attrs := doc["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "Globex", attrs["name"])
}

func TestTenantIsolation_ForeignEmployeeReadsAsMissing(t *testing.T) {
	ts := newTestServer(t)

	orgA := &model.Organization{Number: 100, Name: "Acme"}
	orgB := &model.Organization{Number: 101, Name: "Globex"}
	require.NoError(t, ts.db.Create(orgA).Error)
	require.NoError(t, ts.db.Create(orgB).Error)

	ts.seedUser(t, "admin@acme.com", "admin-pass", authz.RoleClientAdmin, &orgA.ID)
	foreign := ts.seedUser(t, "worker@globex.com", "worker-pass", authz.RoleEmployee, &orgB.ID)

	emp := &model.Employee{
		Number:           100,
		OrganizationID:   orgB.ID,
		UserID:           &foreign.ID,
		Position:         "Engineer",
		MonthlySalary:    decimal.NewFromInt(20000),
		EmploymentStatus: "Active",
		HiredAt:          time.Now().UTC(),
	}
	require.NoError(t, ts.db.Create(emp).Error)

	token := ts.login(t, "admin@acme.com", "admin-pass")
	resp := ts.request(t, http.MethodGet, fmt.Sprintf("/api/v1/employees/%s", emp.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	// Listing from tenant A must not include tenant B's employee either.
	resp = ts.request(t, http.MethodGet, "/api/v1/employees", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list jsonapi.ListDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	_ = resp.Body.Close()
	assert.Empty(t, list.Data)
}

func TestErrorsUseJSONAPIEnvelope(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "root@example.com", "platform-pass", authz.RoleSuperAdmin, nil)
	token := ts.login(t, "root@example.com", "platform-pass")

	resp := ts.request(t, http.MethodGet, "/api/v1/organizations/no-such-id", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/vnd.api+json", resp.Header.Get("Content-Type"))

	var doc jsonapi.ErrorDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	_ = resp.Body.Close()
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "not_found", doc.Errors[0].Code)
}
