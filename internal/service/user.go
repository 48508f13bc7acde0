package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService manages accounts and the role table.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUserInput is the payload for account creation.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,max=100"`
	// OrganizationID is honored for platform-level callers only; tenant
	// admins always create users inside their own organization.
	OrganizationID string `json:"organization_id"`
}

// EnsureRole upserts a role row with the capabilities its name grants.
// Existing rows are left unchanged, so repeated references are cheap.
func (s *UserService) EnsureRole(ctx context.Context, name string) error {
	caps := authz.CapabilitiesFor(name)
	tags := make(model.StringSlice, 0, len(caps))
	for _, c := range caps {
		tags = append(tags, string(c))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Role{Name: name, Capabilities: tags}).Error
}

// ListRoles returns every known role with its capability tags.
func (s *UserService) ListRoles(ctx context.Context, actor authz.Actor) ([]model.Role, error) {
	if err := authz.Require(actor, authz.CapManageUsers); err != nil {
		return nil, err
	}
	var roles []model.Role
	err := s.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

// Create registers a user. Tenant admins create users in their own
// organization; platform admins may target any organization or none.
func (s *UserService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateUserInput) (*model.User, error) {
	if err := authz.Require(actor, authz.CapManageUsers); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = authz.RoleEmployee
	}
	// Only a platform admin may mint another platform admin.
	if role == authz.RoleSuperAdmin && !actor.Can(authz.CapManageAllOrgs) {
		return nil, apperr.Forbidden("not permitted to grant this role")
	}

	var orgID *string
	if scope.AllOrganizations {
		if input.OrganizationID != "" {
			var org model.Organization
			if err := s.db.WithContext(ctx).First(&org, "id = ?", input.OrganizationID).Error; err != nil {
				return nil, notFoundOr(err, "organization")
			}
			orgID = &org.ID
		}
	} else {
		if scope.OrganizationID == "" {
			return nil, apperr.Forbidden("no organization to create the user in")
		}
		id := scope.OrganizationID
		orgID = &id
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureRole(ctx, role); err != nil {
		return nil, err
	}

	user := &model.User{
		OrganizationID: orgID,
		Email:          input.Email,
		Name:           input.Name,
		PasswordHash:   hash,
		Role:           role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	return user, nil
}

// List returns the users visible in scope.
func (s *UserService) List(ctx context.Context, actor authz.Actor, scope authz.Scope) ([]model.User, error) {
	if err := authz.Require(actor, authz.CapManageUsers); err != nil {
		return nil, err
	}
	users := []model.User{}
	q := s.db.WithContext(ctx).Model(&model.User{})
	if !scope.AllOrganizations {
		if scope.OrganizationID == "" {
			return users, nil
		}
		q = q.Where("organization_id = ?", scope.OrganizationID)
	}
	err := q.Order("created_at ASC").Find(&users).Error
	return users, err
}

// Get returns one user: self-lookup is always allowed, anything else needs
// user management within scope.
func (s *UserService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	if actor.UserID == id {
		return &user, nil
	}
	orgID := ""
	if user.OrganizationID != nil {
		orgID = *user.OrganizationID
	}
	if err := authz.Can(actor, scope, orgID, authz.Policy{
		Entity:    "user",
		AdminCaps: []authz.Capability{authz.CapManageUsers},
	}, authz.ActionRead); err != nil {
		return nil, err
	}
	return &user, nil
}

// Deactivate soft-disables an account; its tokens stop working at the next
// auth check. Users cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) error {
	if actor.UserID == id {
		return apperr.Validation("cannot deactivate your own account")
	}
	user, err := s.Get(ctx, actor, scope, id)
	if err != nil {
		return err
	}
	if err := authz.Require(actor, authz.CapManageUsers); err != nil {
		return err
	}
	if user.DeactivatedAt != nil {
		return apperr.Conflict("user already deactivated")
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(user).Update("deactivated_at", now).Error
}
