package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/calc"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/crewdeck/crewdeck/internal/workflow"
	"gorm.io/gorm"
)

// LeaveService manages leave requests and balances. Approval and the
// balance decrement land in one transaction; a request that cannot be
// funded is never shown as approved.
type LeaveService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewLeaveService(db *gorm.DB, seq *sequence.Allocator) *LeaveService {
	return &LeaveService{db: db, seq: seq}
}

// CreateLeaveInput is the payload for filing a request.
type CreateLeaveInput struct {
	// EmployeeID may be omitted by employees filing for themselves.
	EmployeeID string    `json:"employee_id"`
	LeaveType  string    `json:"leave_type" validate:"omitempty,oneof=Annual Sick Unpaid Parental"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required"`
	Reason     string    `json:"reason" validate:"max=2000"`
}

// LeaveFilter narrows listings.
type LeaveFilter struct {
	Status     string
	EmployeeID string
}

// selfEmployee resolves the employee record linked to the acting user.
func (s *LeaveService) selfEmployee(ctx context.Context, actor authz.Actor) (*model.Employee, error) {
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "user_id = ?", actor.UserID).Error; err != nil {
		return nil, notFoundOr(err, "employee")
	}
	return &emp, nil
}

// Create files a leave request. Employees file for themselves; holders of
// the approval capability may file on behalf of any employee in scope.
// The day count is derived from the range and the organization's weekend
// policy at filing time.
func (s *LeaveService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateLeaveInput) (*model.LeaveRequest, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}

	var emp *model.Employee
	var err error
	if input.EmployeeID == "" {
		emp, err = s.selfEmployee(ctx, actor)
		if err != nil {
			return nil, err
		}
	} else {
		var e model.Employee
		if err := s.db.WithContext(ctx).First(&e, "id = ?", input.EmployeeID).Error; err != nil {
			return nil, notFoundOr(err, "employee")
		}
		emp = &e
		self := emp.UserID != nil && *emp.UserID == actor.UserID
		if !self {
			if err := authz.Require(actor, authz.CapApproveLeave, authz.CapManageEmployees); err != nil {
				return nil, err
			}
		}
	}
	if !scope.Covers(emp.OrganizationID) {
		return nil, apperr.NotFound("employee")
	}

	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", emp.OrganizationID).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}
	days, err := calc.LeaveDays(input.StartDate, input.EndDate, org.ExcludeWeekends)
	if err != nil {
		return nil, err
	}
	if days == 0 {
		return nil, apperr.Validation("requested range contains no leave days")
	}

	leaveType := input.LeaveType
	if leaveType == "" {
		leaveType = "Annual"
	}
	now := time.Now().UTC()
	lr := &model.LeaveRequest{
		OrganizationID: emp.OrganizationID,
		EmployeeID:     emp.ID,
		RequesterID:    actor.UserID,
		LeaveType:      leaveType,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		TotalDays:      days,
		Reason:         input.Reason,
		Status:         string(workflow.LeaveFlow.Initial),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.LeaveNumber)
		if err != nil {
			return err
		}
		lr.Number = number
		if err := tx.Create(lr).Error; err != nil {
			return err
		}
		return workflow.Record(tx, workflow.LeaveFlow, lr.ID, workflow.LeaveFlow.Initial, actor.UserID, "filed", now)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// List returns requests visible in scope. Actors without the approval
// capability see only requests they filed or that concern them.
func (s *LeaveService) List(ctx context.Context, actor authz.Actor, scope authz.Scope, filter LeaveFilter) ([]model.LeaveRequest, error) {
	requests := []model.LeaveRequest{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.LeaveRequest{}))
	if !actor.Can(authz.CapApproveLeave) {
		q = q.Where("requester_id = ? OR employee_id IN (?)",
			actor.UserID,
			s.db.Model(&model.Employee{}).Select("id").Where("user_id = ?", actor.UserID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	err := q.Order("number ASC").Find(&requests).Error
	return requests, err
}

func (s *LeaveService) load(ctx context.Context, id string) (*model.LeaveRequest, error) {
	var lr model.LeaveRequest
	if err := s.db.WithContext(ctx).First(&lr, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "leave request")
	}
	return &lr, nil
}

func (s *LeaveService) policy(ctx context.Context, lr *model.LeaveRequest) authz.Policy {
	owners := []string{lr.RequesterID}
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "id = ?", lr.EmployeeID).Error; err == nil && emp.UserID != nil {
		owners = append(owners, *emp.UserID)
	}
	return authz.Policy{
		Entity:    "leave request",
		AdminCaps: []authz.Capability{authz.CapApproveLeave},
		OwnerIDs:  owners,
	}
}

// Get returns one request the actor may see.
func (s *LeaveService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.LeaveRequest, error) {
	lr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, lr.OrganizationID, s.policy(ctx, lr), authz.ActionRead); err != nil {
		return nil, err
	}
	return lr, nil
}

// Approve grants the request and debits the employee's balance for the
// year of the start date, atomically. Insufficient balance rolls the
// decision back. A second approval of the same request conflicts.
func (s *LeaveService) Approve(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.LeaveRequest, error) {
	lr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(lr.OrganizationID) {
		return nil, apperr.NotFound("leave request")
	}
	if err := authz.Require(actor, authz.CapApproveLeave); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.LeaveFlow, lr.ID,
			workflow.Status(lr.Status), "Approved", actor.UserID, "", now); err != nil {
			return err
		}

		var balance model.LeaveBalance
		err := tx.First(&balance, "employee_id = ? AND year = ?", lr.EmployeeID, lr.StartDate.Year()).Error
		if err != nil {
			return notFoundOr(err, "leave balance")
		}
		if balance.Balance < lr.TotalDays {
			return apperr.Conflict("insufficient leave balance")
		}
		used := balance.Used + lr.TotalDays
		if err := tx.Model(&balance).Updates(map[string]any{
			"used":       used,
			"balance":    balance.TotalAllocated - used + balance.CarryForward,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(lr).Updates(map[string]any{
			"decided_by": actor.UserID,
			"decided_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	lr.Status = "Approved"
	lr.DecidedBy = &actor.UserID
	lr.DecidedAt = &now
	return lr, nil
}

// Reject declines the request. Approval capability required.
func (s *LeaveService) Reject(ctx context.Context, actor authz.Actor, scope authz.Scope, id, reason string) (*model.LeaveRequest, error) {
	lr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(lr.OrganizationID) {
		return nil, apperr.NotFound("leave request")
	}
	if err := authz.Require(actor, authz.CapApproveLeave); err != nil {
		return nil, err
	}
	return s.decide(ctx, lr, "Rejected", actor.UserID, reason)
}

// Cancel withdraws a pending request. The requester, the employee or an
// approver may cancel; decided requests stay decided.
func (s *LeaveService) Cancel(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.LeaveRequest, error) {
	lr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, lr.OrganizationID, s.policy(ctx, lr), authz.ActionTransition); err != nil {
		return nil, err
	}
	return s.decide(ctx, lr, "Cancelled", actor.UserID, "")
}

func (s *LeaveService) decide(ctx context.Context, lr *model.LeaveRequest, to workflow.Status, actorID, reason string) (*model.LeaveRequest, error) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.LeaveFlow, lr.ID,
			workflow.Status(lr.Status), to, actorID, reason, now); err != nil {
			return err
		}
		return tx.Model(lr).Updates(map[string]any{
			"decided_by": actorID,
			"decided_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	lr.Status = string(to)
	lr.DecidedBy = &actorID
	lr.DecidedAt = &now
	return lr, nil
}

// History returns the request's transition log, oldest first.
func (s *LeaveService) History(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.StatusChange, error) {
	lr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, lr.OrganizationID, s.policy(ctx, lr), authz.ActionRead); err != nil {
		return nil, err
	}
	return workflow.History(s.db.WithContext(ctx), workflow.LeaveFlow, lr.ID)
}

// Balance returns the employee's entitlement for the given year. The linked
// user reads their own; approvers and employee managers read anyone's in
// scope.
func (s *LeaveService) Balance(ctx context.Context, actor authz.Actor, scope authz.Scope, employeeID string, year int) (*model.LeaveBalance, error) {
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "id = ?", employeeID).Error; err != nil {
		return nil, notFoundOr(err, "employee")
	}
	p := authz.Policy{
		Entity:    "leave balance",
		AdminCaps: []authz.Capability{authz.CapApproveLeave, authz.CapManageEmployees},
	}
	if emp.UserID != nil {
		p.OwnerIDs = []string{*emp.UserID}
	}
	if err := authz.Can(actor, scope, emp.OrganizationID, p, authz.ActionRead); err != nil {
		return nil, err
	}

	var balance model.LeaveBalance
	if err := s.db.WithContext(ctx).
		First(&balance, "employee_id = ? AND year = ?", employeeID, year).Error; err != nil {
		return nil, notFoundOr(err, "leave balance")
	}
	return &balance, nil
}
