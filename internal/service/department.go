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

// DepartmentService manages the org chart groupings.
type DepartmentService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewDepartmentService(db *gorm.DB, seq *sequence.Allocator) *DepartmentService {
	return &DepartmentService{db: db, seq: seq}
}

// DepartmentInput is shared by create and update.
type DepartmentInput struct {
	Name      string  `json:"name" validate:"required,min=1,max=200"`
	ManagerID *string `json:"manager_id"`
	// OrganizationID is honored for platform-level callers only.
	OrganizationID string `json:"organization_id"`
}

// targetOrg picks the organization a creation lands in: tenant callers are
// pinned to their own, platform callers must name one.
func targetOrg(scope authz.Scope, requested string) (string, error) {
	if scope.AllOrganizations {
		if requested == "" {
			return "", apperr.Validation("organization_id is required")
		}
		return requested, nil
	}
	if scope.OrganizationID == "" {
		return "", apperr.NotFound("organization")
	}
	return scope.OrganizationID, nil
}

// Create adds a department to the scoped organization.
func (s *DepartmentService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input DepartmentInput) (*model.Department, error) {
	if err := authz.Require(actor, authz.CapManageEmployees, authz.CapManageOrg); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	orgID, err := targetOrg(scope, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&model.Organization{}, "id = ?", orgID).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}

	dept := &model.Department{
		OrganizationID: orgID,
		Name:           input.Name,
		ManagerID:      input.ManagerID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.DepartmentNumber)
		if err != nil {
			return err
		}
		dept.Number = number
		return tx.Create(dept).Error
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// List returns the departments visible in scope.
func (s *DepartmentService) List(ctx context.Context, scope authz.Scope) ([]model.Department, error) {
	depts := []model.Department{}
	err := scope.Filter(s.db.WithContext(ctx).Model(&model.Department{})).
		Order("number ASC").Find(&depts).Error
	return depts, err
}

// Get returns one department visible in scope.
func (s *DepartmentService) Get(ctx context.Context, scope authz.Scope, id string) (*model.Department, error) {
	var dept model.Department
	if err := s.db.WithContext(ctx).First(&dept, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "department")
	}
	if !scope.Covers(dept.OrganizationID) {
		return nil, apperr.NotFound("department")
	}
	return &dept, nil
}

// Update renames a department or changes its manager.
func (s *DepartmentService) Update(ctx context.Context, actor authz.Actor, scope authz.Scope, id string, input DepartmentInput) (*model.Department, error) {
	dept, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapManageEmployees, authz.CapManageOrg); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"name":       input.Name,
		"manager_id": input.ManagerID,
		"updated_at": time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Model(dept).Updates(updates).Error; err != nil {
		return nil, err
	}
	return dept, nil
}

// Delete removes an empty department. Departments with employees refuse.
func (s *DepartmentService) Delete(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) error {
	dept, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := authz.Require(actor, authz.CapManageEmployees, authz.CapManageOrg); err != nil {
		return err
	}
	var members int64
	if err := s.db.WithContext(ctx).Model(&model.Employee{}).
		Where("department_id = ?", dept.ID).Count(&members).Error; err != nil {
		return err
	}
	if members > 0 {
		return apperr.Conflict("department still has employees")
	}
	return s.db.WithContext(ctx).Delete(dept).Error
}
