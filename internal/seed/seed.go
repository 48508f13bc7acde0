// Package seed prepares a fresh database: the built-in roles and, when the
// users table is empty, a platform admin account.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminOptions configures the seed admin user.
type AdminOptions struct {
	Email    string
	Password string // if empty, a random password is generated
}

// EnsureRoles upserts the built-in roles with their capability tags. The
// rows are a read-only mirror of the authz capability table for the roles
// API; authorization always consults the in-process table. Existing rows
// are refreshed so capability changes ship with upgrades.
func EnsureRoles(_ context.Context, db *gorm.DB) error {
	for _, name := range authz.BuiltinRoleNames() {
		caps := authz.CapabilitiesFor(name)
		tags := make(model.StringSlice, 0, len(caps))
		for _, c := range caps {
			tags = append(tags, string(c))
		}
		role := &model.Role{Name: name, Capabilities: tags}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"capabilities", "updated_at"}),
		}).Create(role).Error
		if err != nil {
			return fmt.Errorf("upsert role %q: %w", name, err)
		}
	}
	return nil
}

// EnsureAdmin creates a platform admin if no users exist. A generated
// password is printed to stdout exactly once; a supplied one is used as-is.
// The function is idempotent and safe to call on every startup.
func EnsureAdmin(_ context.Context, db *gorm.DB, opts AdminOptions, log *slog.Logger) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed admin already exists")
		return nil
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		fmt.Printf("[crewdeck] seed admin password: %s\n", password)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	u := &model.User{
		Email:        opts.Email,
		Name:         "Platform Admin",
		PasswordHash: hash,
		Role:         authz.RoleSuperAdmin,
	}
	if err := db.Create(u).Error; err != nil {
		return fmt.Errorf("insert seed admin: %w", err)
	}

	log.Info("seed admin created", "email", opts.Email)
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
