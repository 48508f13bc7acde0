package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const secret = "test-secret-at-least-32-bytes!!!"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role string) *model.User {
	t.Helper()
	u := &model.User{Email: role + "@example.com", Name: "Test User", PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func issueToken(t *testing.T, u *model.User, orgID string) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(u.ID, u.Email, u.Role, orgID, secret, 15*time.Minute)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	db := openTestDB(t)
	handler := middleware.RequireAuth(secret, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	db := openTestDB(t)
	handler := middleware.RequireAuth(secret, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer this.is.garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_InjectsActorAndScope(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, authz.RoleClientAdmin)

	handler := middleware.RequireAuth(secret, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		require.NotNil(t, claims)
		assert.Equal(t, u.ID, claims.UserID)

		actor := middleware.ActorFromContext(r.Context())
		assert.Equal(t, u.ID, actor.UserID)
		assert.True(t, actor.Can(authz.CapManageEmployees))

		scope := middleware.ScopeFromContext(r.Context())
		assert.True(t, scope.Covers("org-1"))
		assert.False(t, scope.Covers("org-2"))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, u, "org-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_DeactivatedAccount(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, authz.RoleEmployee)
	tok := issueToken(t, u, "org-1")

	now := time.Now().UTC()
	require.NoError(t, db.Model(u).Update("deactivated_at", now).Error)

	handler := middleware.RequireAuth(secret, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireCapability_EmployeeCannotRunPayroll(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, authz.RoleEmployee)

	chain := middleware.RequireAuth(secret, db)(
		middleware.RequireCapability(authz.CapRunPayroll)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			}),
		),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll-cycles", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, u, "org-1"))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireCapability_SuperAdminWildcard(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, authz.RoleSuperAdmin)

	chain := middleware.RequireAuth(secret, db)(
		middleware.RequireCapability(authz.CapRunPayroll)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, u, ""))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
