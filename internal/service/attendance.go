package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/calc"
	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
)

// AttendanceService records daily presence. Check-in opens the day's
// record; check-out closes it and splits the worked time into regular and
// overtime hours.
type AttendanceService struct {
	db *gorm.DB
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{db: db}
}

// AttendanceFilter narrows listings. From and To are inclusive YYYY-MM-DD
// bounds.
type AttendanceFilter struct {
	EmployeeID string
	From       string
	To         string
}

func (s *AttendanceService) selfEmployee(ctx context.Context, actor authz.Actor) (*model.Employee, error) {
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "user_id = ?", actor.UserID).Error; err != nil {
		return nil, notFoundOr(err, "employee")
	}
	if emp.EmploymentStatus != "Active" {
		return nil, apperr.Conflict("employee is not active")
	}
	return &emp, nil
}

// CheckIn opens today's attendance record for the acting employee. A second
// check-in on the same day conflicts.
func (s *AttendanceService) CheckIn(ctx context.Context, actor authz.Actor) (*model.AttendanceRecord, error) {
	emp, err := s.selfEmployee(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &model.AttendanceRecord{
		OrganizationID: emp.OrganizationID,
		EmployeeID:     emp.ID,
		Day:            now.Format("2006-01-02"),
		CheckIn:        now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("already checked in today")
		}
		return nil, err
	}
	return record, nil
}

// CheckOut closes today's record and computes the regular/overtime split.
func (s *AttendanceService) CheckOut(ctx context.Context, actor authz.Actor) (*model.AttendanceRecord, error) {
	emp, err := s.selfEmployee(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var record model.AttendanceRecord
	err = s.db.WithContext(ctx).
		First(&record, "employee_id = ? AND day = ?", emp.ID, now.Format("2006-01-02")).Error
	if err != nil {
		return nil, notFoundOr(err, "attendance record")
	}
	if record.CheckOut != nil {
		return nil, apperr.Conflict("already checked out today")
	}

	regular, overtime := calc.SplitWorkedHours(now.Sub(record.CheckIn))
	if err := s.db.WithContext(ctx).Model(&record).Updates(map[string]any{
		"check_out":      now,
		"regular_hours":  regular,
		"overtime_hours": overtime,
		"updated_at":     now,
	}).Error; err != nil {
		return nil, err
	}
	record.CheckOut = &now
	record.RegularHours = regular
	record.OvertimeHours = overtime
	return &record, nil
}

// List returns attendance records. Actors without employee management see
// only their own.
func (s *AttendanceService) List(ctx context.Context, actor authz.Actor, scope authz.Scope, filter AttendanceFilter) ([]model.AttendanceRecord, error) {
	records := []model.AttendanceRecord{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.AttendanceRecord{}))
	if !actor.Can(authz.CapManageEmployees) {
		q = q.Where("employee_id IN (?)",
			s.db.Model(&model.Employee{}).Select("id").Where("user_id = ?", actor.UserID))
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.From != "" {
		q = q.Where("day >= ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("day <= ?", filter.To)
	}
	err := q.Order("day ASC, created_at ASC").Find(&records).Error
	return records, err
}
