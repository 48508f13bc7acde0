package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"gorm.io/gorm"
)

// OrganizationService manages tenants and their settings.
type OrganizationService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewOrganizationService(db *gorm.DB, seq *sequence.Allocator) *OrganizationService {
	return &OrganizationService{db: db, seq: seq}
}

// CreateOrganizationInput is the payload for provisioning a tenant.
type CreateOrganizationInput struct {
	Name             string `json:"name" validate:"required,min=2,max=200"`
	Address          string `json:"address" validate:"max=500"`
	SubscriptionPlan string `json:"subscription_plan" validate:"omitempty,oneof=standard premium enterprise"`
}

// UpdateOrganizationInput carries the mutable fields; nil means unchanged.
type UpdateOrganizationInput struct {
	Address          *string `json:"address" validate:"omitempty,max=500"`
	SubscriptionPlan *string `json:"subscription_plan" validate:"omitempty,oneof=standard premium enterprise"`
	PayrollCycle     *string `json:"payroll_cycle" validate:"omitempty,oneof=monthly biweekly weekly"`
	PTOAllocation    *int    `json:"pto_allocation" validate:"omitempty,min=0,max=365"`
	ExcludeWeekends  *bool   `json:"exclude_weekends"`
}

// Create provisions a new organization. Platform-level capability only.
func (s *OrganizationService) Create(ctx context.Context, actor authz.Actor, input CreateOrganizationInput) (*model.Organization, error) {
	if err := authz.Require(actor, authz.CapManageAllOrgs); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	plan := input.SubscriptionPlan
	if plan == "" {
		plan = "standard"
	}

	org := &model.Organization{
		Name:             input.Name,
		Address:          input.Address,
		SubscriptionPlan: plan,
		PayrollCycle:     "monthly",
		PTOAllocation:    20,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.OrganizationNumber)
		if err != nil {
			return err
		}
		org.Number = number
		if err := tx.Create(org).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("organization name already in use")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// List returns the organizations visible in scope, newest first.
func (s *OrganizationService) List(ctx context.Context, scope authz.Scope) ([]model.Organization, error) {
	orgs := []model.Organization{}
	q := s.db.WithContext(ctx).Model(&model.Organization{})
	if !scope.AllOrganizations {
		if scope.OrganizationID == "" {
			return orgs, nil
		}
		q = q.Where("id = ?", scope.OrganizationID)
	}
	if err := q.Order("number ASC").Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

// Get returns one organization; out-of-scope IDs read as absent.
func (s *OrganizationService) Get(ctx context.Context, scope authz.Scope, id string) (*model.Organization, error) {
	if !scope.Covers(id) {
		return nil, apperr.NotFound("organization")
	}
	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}
	return &org, nil
}

// Update changes address, plan and settings. Requires org management within
// the organization, or the platform capability.
func (s *OrganizationService) Update(ctx context.Context, actor authz.Actor, scope authz.Scope, id string, input UpdateOrganizationInput) (*model.Organization, error) {
	if !scope.Covers(id) {
		return nil, apperr.NotFound("organization")
	}
	if err := authz.Require(actor, authz.CapManageAllOrgs, authz.CapManageOrg); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if input.Address != nil {
		updates["address"] = *input.Address
	}
	if input.SubscriptionPlan != nil {
		updates["subscription_plan"] = *input.SubscriptionPlan
	}
	if input.PayrollCycle != nil {
		updates["payroll_cycle"] = *input.PayrollCycle
	}
	if input.PTOAllocation != nil {
		updates["pto_allocation"] = *input.PTOAllocation
	}
	if input.ExcludeWeekends != nil {
		updates["exclude_weekends"] = *input.ExcludeWeekends
	}
	if err := s.db.WithContext(ctx).Model(&org).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// AssignClientAdmin binds a user as the single client admin of the
// organization. The user is promoted to the Client Admin role and moved into
// the organization.
func (s *OrganizationService) AssignClientAdmin(ctx context.Context, actor authz.Actor, orgID, userID string) (*model.Organization, error) {
	if err := authz.Require(actor, authz.CapManageAllOrgs); err != nil {
		return nil, err
	}

	var org model.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&org, "id = ?", orgID).Error; err != nil {
			return notFoundOr(err, "organization")
		}
		var user model.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFoundOr(err, "user")
		}
		if user.DeactivatedAt != nil {
			return apperr.Conflict("user is deactivated")
		}

		if err := tx.Model(&user).Updates(map[string]any{
			"organization_id": orgID,
			"role":            authz.RoleClientAdmin,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&org).Update("client_admin_id", userID).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("user already administers another organization")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// AssignHRAccountManager binds a platform user as the HR account manager
// serving the organization. The user takes the HR Account Manager role and
// its scope follows the assignment.
func (s *OrganizationService) AssignHRAccountManager(ctx context.Context, actor authz.Actor, orgID, userID string) (*model.Organization, error) {
	if err := authz.Require(actor, authz.CapManageAllOrgs); err != nil {
		return nil, err
	}

	var org model.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&org, "id = ?", orgID).Error; err != nil {
			return notFoundOr(err, "organization")
		}
		var user model.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFoundOr(err, "user")
		}
		if user.DeactivatedAt != nil {
			return apperr.Conflict("user is deactivated")
		}
		if err := tx.Model(&user).Updates(map[string]any{
			"organization_id": orgID,
			"role":            authz.RoleHRAccountManager,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&org).Update("hr_account_manager_id", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}
