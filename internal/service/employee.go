package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/crewdeck/crewdeck/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmployeeService manages personnel records, their employment status
// lifecycle and the yearly leave entitlement that comes with them.
type EmployeeService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewEmployeeService(db *gorm.DB, seq *sequence.Allocator) *EmployeeService {
	return &EmployeeService{db: db, seq: seq}
}

// CreateEmployeeInput is the payload for onboarding.
type CreateEmployeeInput struct {
	UserID        *string         `json:"user_id"`
	DepartmentID  *string         `json:"department_id"`
	ManagerID     *string         `json:"manager_id"`
	Position      string          `json:"position" validate:"max=200"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	HiredAt       time.Time       `json:"hired_at" validate:"required"`
	// OrganizationID is honored for platform-level callers only.
	OrganizationID string `json:"organization_id"`
}

// UpdateEmployeeInput carries the mutable fields; nil means unchanged.
type UpdateEmployeeInput struct {
	DepartmentID  *string          `json:"department_id"`
	ManagerID     *string          `json:"manager_id"`
	Position      *string          `json:"position" validate:"omitempty,max=200"`
	MonthlySalary *decimal.Decimal `json:"monthly_salary"`
}

// EmployeeFilter narrows listings.
type EmployeeFilter struct {
	Status       string
	DepartmentID string
}

// Create onboards an employee: issues the sequential number, records the
// initial status in the history and opens the current year's leave balance.
func (s *EmployeeService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateEmployeeInput) (*model.Employee, error) {
	if err := authz.Require(actor, authz.CapManageEmployees); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if input.MonthlySalary.IsNegative() {
		return nil, apperr.Validation("monthly_salary must not be negative")
	}
	orgID, err := targetOrg(scope, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}
	if input.DepartmentID != nil {
		var dept model.Department
		if err := s.db.WithContext(ctx).
			First(&dept, "id = ? AND organization_id = ?", *input.DepartmentID, orgID).Error; err != nil {
			return nil, notFoundOr(err, "department")
		}
	}

	now := time.Now().UTC()
	emp := &model.Employee{
		OrganizationID:   orgID,
		UserID:           input.UserID,
		DepartmentID:     input.DepartmentID,
		ManagerID:        input.ManagerID,
		Position:         input.Position,
		EmploymentStatus: string(workflow.EmployeeFlow.Initial),
		MonthlySalary:    input.MonthlySalary,
		HiredAt:          input.HiredAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.EmployeeNumber)
		if err != nil {
			return err
		}
		emp.Number = number
		if err := tx.Create(emp).Error; err != nil {
			return err
		}
		if err := workflow.Record(tx, workflow.EmployeeFlow, emp.ID, workflow.EmployeeFlow.Initial, actor.UserID, "onboarded", now); err != nil {
			return err
		}
		balance := &model.LeaveBalance{
			OrganizationID: orgID,
			EmployeeID:     emp.ID,
			Year:           now.Year(),
			TotalAllocated: org.PTOAllocation,
			Balance:        org.PTOAllocation,
		}
		return tx.Create(balance).Error
	})
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// List returns employees visible in scope, optionally filtered.
func (s *EmployeeService) List(ctx context.Context, scope authz.Scope, filter EmployeeFilter) ([]model.Employee, error) {
	emps := []model.Employee{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.Employee{}))
	if filter.Status != "" {
		q = q.Where("employment_status = ?", filter.Status)
	}
	if filter.DepartmentID != "" {
		q = q.Where("department_id = ?", filter.DepartmentID)
	}
	err := q.Order("number ASC").Find(&emps).Error
	return emps, err
}

func (s *EmployeeService) load(ctx context.Context, id string) (*model.Employee, error) {
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "employee")
	}
	return &emp, nil
}

func employeePolicy(emp *model.Employee) authz.Policy {
	p := authz.Policy{
		Entity:    "employee",
		AdminCaps: []authz.Capability{authz.CapManageEmployees},
	}
	if emp.UserID != nil {
		p.OwnerIDs = []string{*emp.UserID}
	}
	return p
}

// Get returns one employee record. The linked user reads their own record;
// everyone else needs employee management within scope.
func (s *EmployeeService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.Employee, error) {
	emp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, emp.OrganizationID, employeePolicy(emp), authz.ActionRead); err != nil {
		return nil, err
	}
	return emp, nil
}

// Update changes position, salary, department or manager.
func (s *EmployeeService) Update(ctx context.Context, actor authz.Actor, scope authz.Scope, id string, input UpdateEmployeeInput) (*model.Employee, error) {
	emp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(emp.OrganizationID) {
		return nil, apperr.NotFound("employee")
	}
	if err := authz.Require(actor, authz.CapManageEmployees); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if input.MonthlySalary != nil && input.MonthlySalary.IsNegative() {
		return nil, apperr.Validation("monthly_salary must not be negative")
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if input.DepartmentID != nil {
		var dept model.Department
		if err := s.db.WithContext(ctx).
			First(&dept, "id = ? AND organization_id = ?", *input.DepartmentID, emp.OrganizationID).Error; err != nil {
			return nil, notFoundOr(err, "department")
		}
		updates["department_id"] = *input.DepartmentID
	}
	if input.ManagerID != nil {
		updates["manager_id"] = *input.ManagerID
	}
	if input.Position != nil {
		updates["position"] = *input.Position
	}
	if input.MonthlySalary != nil {
		updates["monthly_salary"] = *input.MonthlySalary
	}
	if err := s.db.WithContext(ctx).Model(emp).Updates(updates).Error; err != nil {
		return nil, err
	}
	return emp, nil
}

// ChangeStatus moves the employee through the employment lifecycle. The
// caller states the status it believes is current; a mismatch conflicts.
func (s *EmployeeService) ChangeStatus(ctx context.Context, actor authz.Actor, scope authz.Scope, id, to, reason string) (*model.Employee, error) {
	emp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(emp.OrganizationID) {
		return nil, apperr.NotFound("employee")
	}
	if err := authz.Require(actor, authz.CapManageEmployees); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return workflow.Apply(tx, workflow.EmployeeFlow, emp.ID,
			workflow.Status(emp.EmploymentStatus), workflow.Status(to),
			actor.UserID, reason, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	emp.EmploymentStatus = to
	return emp, nil
}

// History returns the employment status log, oldest first.
func (s *EmployeeService) History(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.StatusChange, error) {
	emp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, emp.OrganizationID, employeePolicy(emp), authz.ActionRead); err != nil {
		return nil, err
	}
	return workflow.History(s.db.WithContext(ctx), workflow.EmployeeFlow, emp.ID)
}
