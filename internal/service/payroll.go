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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayrollRunEnqueuer hands a payroll run to a background queue. The boolean
// reports whether the job was actually queued; a false means the caller
// must run the computation inline.
type PayrollRunEnqueuer interface {
	EnqueuePayrollRun(ctx context.Context, cycleID string) (bool, error)
}

// PayrollService manages pay cycles and their computed entries. Starting a
// cycle kicks off the entry computation, queued when a job queue is
// available and inline otherwise.
type PayrollService struct {
	db      *gorm.DB
	seq     *sequence.Allocator
	enqueue PayrollRunEnqueuer
}

func NewPayrollService(db *gorm.DB, seq *sequence.Allocator, enqueue PayrollRunEnqueuer) *PayrollService {
	return &PayrollService{db: db, seq: seq, enqueue: enqueue}
}

// SetEnqueuer installs the job queue after construction. The queue's
// workers need the service to exist first, so the wiring is two-phase.
func (s *PayrollService) SetEnqueuer(enqueue PayrollRunEnqueuer) {
	s.enqueue = enqueue
}

// CreateCycleInput is the payload for opening a pay period.
type CreateCycleInput struct {
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
	// OrganizationID is honored for platform-level callers only.
	OrganizationID string `json:"organization_id"`
}

// CycleFilter narrows listings.
type CycleFilter struct {
	Status string
}

// CreateCycle opens a draft pay period.
func (s *PayrollService) CreateCycle(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateCycleInput) (*model.PayrollCycle, error) {
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if input.PeriodEnd.Before(input.PeriodStart) {
		return nil, apperr.Validation("period_end must not be before period_start")
	}
	orgID, err := targetOrg(scope, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&model.Organization{}, "id = ?", orgID).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}

	now := time.Now().UTC()
	cycle := &model.PayrollCycle{
		OrganizationID: orgID,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      input.PeriodEnd,
		Status:         string(workflow.PayrollFlow.Initial),
		TotalGross:     decimal.Zero,
		TotalOvertime:  decimal.Zero,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.CycleNumber)
		if err != nil {
			return err
		}
		cycle.Number = number
		if err := tx.Create(cycle).Error; err != nil {
			return err
		}
		return workflow.Record(tx, workflow.PayrollFlow, cycle.ID, workflow.PayrollFlow.Initial, actor.UserID, "opened", now)
	})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

// List returns cycles visible in scope.
func (s *PayrollService) List(ctx context.Context, actor authz.Actor, scope authz.Scope, filter CycleFilter) ([]model.PayrollCycle, error) {
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}
	cycles := []model.PayrollCycle{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.PayrollCycle{}))
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	err := q.Order("number ASC").Find(&cycles).Error
	return cycles, err
}

func (s *PayrollService) load(ctx context.Context, scope authz.Scope, id string) (*model.PayrollCycle, error) {
	var cycle model.PayrollCycle
	if err := s.db.WithContext(ctx).First(&cycle, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "payroll cycle")
	}
	if !scope.Covers(cycle.OrganizationID) {
		return nil, apperr.NotFound("payroll cycle")
	}
	return &cycle, nil
}

// Get returns one cycle.
func (s *PayrollService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.PayrollCycle, error) {
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}
	return s.load(ctx, scope, id)
}

// Start moves a draft cycle into progress and triggers the run.
func (s *PayrollService) Start(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.PayrollCycle, error) {
	cycle, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return workflow.Apply(tx, workflow.PayrollFlow, cycle.ID,
			workflow.Status(cycle.Status), "In Progress", actor.UserID, "", time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	cycle.Status = "In Progress"

	queued := false
	if s.enqueue != nil {
		queued, err = s.enqueue.EnqueuePayrollRun(ctx, cycle.ID)
		if err != nil {
			return nil, err
		}
	}
	if !queued {
		if err := s.RunCycle(ctx, cycle.ID); err != nil {
			return nil, err
		}
	}
	return cycle, nil
}

// RunCycle computes one entry per active employee of the cycle's
// organization: regular hours from attendance (a full month when none were
// recorded), overtime at time-and-a-half. Re-running replaces the entries,
// so a retried job cannot double-pay.
func (s *PayrollService) RunCycle(ctx context.Context, cycleID string) error {
	var cycle model.PayrollCycle
	if err := s.db.WithContext(ctx).First(&cycle, "id = ?", cycleID).Error; err != nil {
		return notFoundOr(err, "payroll cycle")
	}
	if cycle.Status != "In Progress" {
		return apperr.Conflict("payroll cycle is not in progress")
	}

	var employees []model.Employee
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND employment_status = ?", cycle.OrganizationID, "Active").
		Order("number ASC").Find(&employees).Error; err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cycle_id = ?", cycle.ID).Delete(&model.PayrollEntry{}).Error; err != nil {
			return err
		}

		totalGross := decimal.Zero
		totalOvertime := decimal.Zero
		for _, emp := range employees {
			regular, overtime, err := attendanceHours(tx, emp.ID, cycle.PeriodStart, cycle.PeriodEnd)
			if err != nil {
				return err
			}
			pay := calc.OvertimePay(emp.MonthlySalary, regular, overtime)
			entry := &model.PayrollEntry{
				CycleID:       cycle.ID,
				EmployeeID:    emp.ID,
				RegularHours:  regular,
				OvertimeHours: overtime,
				HourlyRate:    pay.HourlyRate,
				RegularPay:    pay.RegularPay,
				OvertimePay:   pay.OvertimePay,
				GrossPay:      pay.GrossPay,
			}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
			totalGross = totalGross.Add(pay.GrossPay)
			totalOvertime = totalOvertime.Add(pay.OvertimePay)
		}

		return tx.Model(&cycle).Updates(map[string]any{
			"total_gross":    totalGross,
			"total_overtime": totalOvertime,
			"entry_count":    len(employees),
			"updated_at":     time.Now().UTC(),
		}).Error
	})
}

// attendanceHours sums an employee's recorded hours inside the period.
// Without any records the employee is paid a standard full month.
func attendanceHours(tx *gorm.DB, employeeID string, start, end time.Time) (regular, overtime decimal.Decimal, err error) {
	var records []model.AttendanceRecord
	err = tx.Where("employee_id = ? AND day >= ? AND day <= ?",
		employeeID, start.Format("2006-01-02"), end.Format("2006-01-02")).
		Find(&records).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if len(records) == 0 {
		return calc.StandardMonthlyHours(), decimal.Zero, nil
	}
	regular, overtime = decimal.Zero, decimal.Zero
	for _, r := range records {
		regular = regular.Add(r.RegularHours)
		overtime = overtime.Add(r.OvertimeHours)
	}
	return regular, overtime, nil
}

// Complete closes a cycle after its run. Completion with no computed
// entries conflicts.
func (s *PayrollService) Complete(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.PayrollCycle, error) {
	cycle, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}

	var entries int64
	if err := s.db.WithContext(ctx).Model(&model.PayrollEntry{}).
		Where("cycle_id = ?", cycle.ID).Count(&entries).Error; err != nil {
		return nil, err
	}
	if entries == 0 {
		return nil, apperr.Conflict("payroll cycle has no computed entries yet")
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.PayrollFlow, cycle.ID,
			workflow.Status(cycle.Status), "Completed", actor.UserID, "", now); err != nil {
			return err
		}
		return tx.Model(cycle).Update("completed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	cycle.Status = "Completed"
	cycle.CompletedAt = &now
	return cycle, nil
}

// Entries returns the computed entries for a cycle.
func (s *PayrollService) Entries(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.PayrollEntry, error) {
	cycle, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}
	entries := []model.PayrollEntry{}
	err = s.db.WithContext(ctx).Where("cycle_id = ?", cycle.ID).
		Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}

// History returns the cycle's transition log, oldest first.
func (s *PayrollService) History(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.StatusChange, error) {
	cycle, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapRunPayroll); err != nil {
		return nil, err
	}
	return workflow.History(s.db.WithContext(ctx), workflow.PayrollFlow, cycle.ID)
}
