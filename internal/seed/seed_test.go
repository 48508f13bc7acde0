package seed_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/seed"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Role{}, &model.User{}))
	return db
}

func nullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestEnsureRoles_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, seed.EnsureRoles(ctx, db))
	require.NoError(t, seed.EnsureRoles(ctx, db))

	var count int64
	require.NoError(t, db.Model(&model.Role{}).Count(&count).Error)
	assert.Equal(t, int64(len(authz.BuiltinRoleNames())), count)

	var admin model.Role
	require.NoError(t, db.First(&admin, "name = ?", authz.RoleSuperAdmin).Error)
	assert.Contains(t, []string(admin.Capabilities), string(authz.CapAll))
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	opts := seed.AdminOptions{Email: "admin@example.com", Password: "bootstrap-password"}

	require.NoError(t, seed.EnsureAdmin(ctx, db, opts, nullLogger()))

	var u model.User
	require.NoError(t, db.First(&u, "email = ?", "admin@example.com").Error)
	assert.Equal(t, authz.RoleSuperAdmin, u.Role)
	assert.True(t, auth.VerifyPassword("bootstrap-password", u.PasswordHash))

	// A second run must not create another account.
	require.NoError(t, seed.EnsureAdmin(ctx, db, opts, nullLogger()))
	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	existing := &model.User{Email: "someone@example.com", Name: "Existing", PasswordHash: "x", Role: authz.RoleEmployee}
	require.NoError(t, db.Create(existing).Error)

	opts := seed.AdminOptions{Email: "admin@example.com", Password: "bootstrap-password"}
	require.NoError(t, seed.EnsureAdmin(ctx, db, opts, nullLogger()))

	var count int64
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "admin@example.com").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
