// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StringSlice is a []string that GORM serialises as JSON for both SQLite
// and PostgreSQL (TEXT column).
type StringSlice []string

// Organization represents a tenant. All business data except users, roles
// and counters belongs to exactly one organization.
type Organization struct {
	ID                 string  `gorm:"type:text;primaryKey"`
	Number             int64   `gorm:"not null;uniqueIndex"`
	Name               string  `gorm:"type:text;not null;uniqueIndex"`
	ClientAdminID      *string `gorm:"type:text;uniqueIndex"`
	HRAccountManagerID *string `gorm:"type:text"`
	Address            string  `gorm:"type:text;not null;default:''"`
	SubscriptionPlan   string  `gorm:"type:text;not null;default:'standard'"`
	// Settings
	PayrollCycle    string    `gorm:"type:text;not null;default:'monthly'"`
	PTOAllocation   int       `gorm:"not null;default:20"` // annual leave days granted per employee
	ExcludeWeekends bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (o *Organization) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// User is the GORM model for the users table. The role is a plain label;
// the capability set it grants lives on the Role record.
type User struct {
	ID             string  `gorm:"type:text;primaryKey"`
	OrganizationID *string `gorm:"type:text;index"`
	Email          string  `gorm:"type:text;not null;uniqueIndex"`
	Name           string  `gorm:"type:text;not null;default:''"`
	PasswordHash   string  `gorm:"type:text;not null;default:''"`
	Role           string  `gorm:"type:text;not null;default:'Employee'"`
	DeactivatedAt  *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// Role maps a role name to the capability tags it grants. Roles are
// upserted lazily: any code path referencing a role name ensures the row
// exists. Exactly one row per distinct name.
type Role struct {
	Name         string      `gorm:"type:text;primaryKey"`
	Capabilities StringSlice `gorm:"type:text;not null;default:'[]';serializer:json"`
	CreatedAt    time.Time   `gorm:"not null"`
	UpdatedAt    time.Time   `gorm:"not null"`
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// Department groups employees inside one organization.
type Department struct {
	ID             string    `gorm:"type:text;primaryKey"`
	Number         int64     `gorm:"not null;index"`
	OrganizationID string    `gorm:"type:text;not null;index"`
	Name           string    `gorm:"type:text;not null"`
	ManagerID      *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (d *Department) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// Employee is an organization-scoped personnel record. Number is the
// human-facing sequential ID issued by the counter allocator.
type Employee struct {
	ID               string          `gorm:"type:text;primaryKey"`
	Number           int64           `gorm:"not null;uniqueIndex"`
	OrganizationID   string          `gorm:"type:text;not null;index:idx_employees_org_status"`
	UserID           *string         `gorm:"type:text;index"`
	DepartmentID     *string         `gorm:"type:text;index"`
	ManagerID        *string         `gorm:"type:text"`
	Position         string          `gorm:"type:text;not null;default:''"`
	EmploymentStatus string          `gorm:"type:text;not null;default:'Onboarding';index:idx_employees_org_status"`
	MonthlySalary    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	HiredAt          time.Time       `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (e *Employee) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// StatusChange is one row of the append-only status history shared by all
// workflow entities. Rows are inserted and never updated; the current
// status column on each entity is a projection of the latest row here.
type StatusChange struct {
	ID         string    `gorm:"type:text;primaryKey"`
	EntityType string    `gorm:"type:text;not null;index:idx_status_changes_entity"`
	EntityID   string    `gorm:"type:text;not null;index:idx_status_changes_entity"`
	Status     string    `gorm:"type:text;not null"`
	ChangedBy  string    `gorm:"type:text;not null"`
	Reason     string    `gorm:"type:text;not null;default:''"`
	ChangedAt  time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (sc *StatusChange) BeforeCreate(_ *gorm.DB) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	return nil
}

// Ticket is a help-desk request with SLA deadlines derived from priority.
type Ticket struct {
	ID             string  `gorm:"type:text;primaryKey"`
	Number         int64   `gorm:"not null;uniqueIndex"`
	OrganizationID string  `gorm:"type:text;not null;index:idx_tickets_org_status"`
	RequesterID    string  `gorm:"type:text;not null;index"`
	AssignedToID   *string `gorm:"type:text;index"`
	Subject        string  `gorm:"type:text;not null"`
	Description    string  `gorm:"type:text;not null;default:''"`
	Priority       string  `gorm:"type:text;not null;default:'Medium'"`
	Status         string  `gorm:"type:text;not null;default:'Open';index:idx_tickets_org_status"`
	ResponseDue    time.Time `gorm:"not null"`
	ResolutionDue  time.Time `gorm:"not null"`
	ResolvedAt     *time.Time
	ResolvedBy     *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (t *Ticket) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TicketComment is a note on a ticket by the requester, assignee or an admin.
type TicketComment struct {
	ID        string    `gorm:"type:text;primaryKey"`
	TicketID  string    `gorm:"type:text;not null;index"`
	AuthorID  string    `gorm:"type:text;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (c *TicketComment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// LeaveRequest is an employee request for time off. TotalDays is computed
// at creation from the date range and the organization's weekend policy.
type LeaveRequest struct {
	ID             string    `gorm:"type:text;primaryKey"`
	Number         int64     `gorm:"not null;uniqueIndex"`
	OrganizationID string    `gorm:"type:text;not null;index:idx_leave_requests_org_status"`
	EmployeeID     string    `gorm:"type:text;not null;index"`
	RequesterID    string    `gorm:"type:text;not null"` // user who filed the request
	LeaveType      string    `gorm:"type:text;not null;default:'Annual'"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null"`
	TotalDays      int       `gorm:"not null"`
	Reason         string    `gorm:"type:text;not null;default:''"`
	Status         string    `gorm:"type:text;not null;default:'Pending';index:idx_leave_requests_org_status"`
	DecidedBy      *string   `gorm:"type:text"`
	DecidedAt      *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (lr *LeaveRequest) BeforeCreate(_ *gorm.DB) error {
	if lr.ID == "" {
		lr.ID = uuid.New().String()
	}
	return nil
}

// LeaveBalance tracks one employee's leave entitlement for one year.
// Balance is always TotalAllocated - Used + CarryForward.
type LeaveBalance struct {
	ID             string    `gorm:"type:text;primaryKey"`
	OrganizationID string    `gorm:"type:text;not null;index"`
	EmployeeID     string    `gorm:"type:text;not null;uniqueIndex:idx_leave_balances_employee_year"`
	Year           int       `gorm:"not null;uniqueIndex:idx_leave_balances_employee_year"`
	TotalAllocated int       `gorm:"not null"`
	Used           int       `gorm:"not null;default:0"`
	CarryForward   int       `gorm:"not null;default:0"`
	Balance        int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (lb *LeaveBalance) BeforeCreate(_ *gorm.DB) error {
	if lb.ID == "" {
		lb.ID = uuid.New().String()
	}
	return nil
}

// ExpenseClaim is a reimbursement request routed through ordered approval
// levels.
type ExpenseClaim struct {
	ID             string          `gorm:"type:text;primaryKey"`
	Number         int64           `gorm:"not null;uniqueIndex"`
	OrganizationID string          `gorm:"type:text;not null;index:idx_expense_claims_org_status"`
	SubmittedBy    string          `gorm:"type:text;not null;index"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Currency       string          `gorm:"type:text;not null;default:'USD'"`
	Category       string          `gorm:"type:text;not null;default:''"`
	Description    string          `gorm:"type:text;not null;default:''"`
	Status         string          `gorm:"type:text;not null;default:'Draft';index:idx_expense_claims_org_status"`
	ReimbursedAt   *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (ec *ExpenseClaim) BeforeCreate(_ *gorm.DB) error {
	if ec.ID == "" {
		ec.ID = uuid.New().String()
	}
	return nil
}

// ExpenseApproval is one approval level on a claim. Levels are decided in
// ascending order; forwarding moves the claim to the next pending level.
type ExpenseApproval struct {
	ID         string `gorm:"type:text;primaryKey"`
	ClaimID    string `gorm:"type:text;not null;index"`
	Level      int    `gorm:"not null"`
	ApproverID string `gorm:"type:text;not null"`
	Decision   string `gorm:"type:text;not null;default:'Pending'"`
	Comment    string `gorm:"type:text;not null;default:''"`
	DecidedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (ea *ExpenseApproval) BeforeCreate(_ *gorm.DB) error {
	if ea.ID == "" {
		ea.ID = uuid.New().String()
	}
	return nil
}

// PayrollCycle is one pay period for an organization. Totals are filled in
// by the payroll run (background worker on postgres, inline otherwise).
type PayrollCycle struct {
	ID             string          `gorm:"type:text;primaryKey"`
	Number         int64           `gorm:"not null;uniqueIndex"`
	OrganizationID string          `gorm:"type:text;not null;index:idx_payroll_cycles_org_status"`
	PeriodStart    time.Time       `gorm:"not null"`
	PeriodEnd      time.Time       `gorm:"not null"`
	Status         string          `gorm:"type:text;not null;default:'Draft';index:idx_payroll_cycles_org_status"`
	TotalGross     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	TotalOvertime  decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	EntryCount     int             `gorm:"not null;default:0"`
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (pc *PayrollCycle) BeforeCreate(_ *gorm.DB) error {
	if pc.ID == "" {
		pc.ID = uuid.New().String()
	}
	return nil
}

// PayrollEntry is one employee's computed pay within a cycle.
type PayrollEntry struct {
	ID            string          `gorm:"type:text;primaryKey"`
	CycleID       string          `gorm:"type:text;not null;index"`
	EmployeeID    string          `gorm:"type:text;not null;index"`
	RegularHours  decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	OvertimeHours decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	HourlyRate    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	RegularPay    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	OvertimePay   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	GrossPay      decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (pe *PayrollEntry) BeforeCreate(_ *gorm.DB) error {
	if pe.ID == "" {
		pe.ID = uuid.New().String()
	}
	return nil
}

// AttendanceRecord is one employee-day of presence. Overtime is computed at
// check-out against the daily threshold.
type AttendanceRecord struct {
	ID             string    `gorm:"type:text;primaryKey"`
	OrganizationID string    `gorm:"type:text;not null;index"`
	EmployeeID     string    `gorm:"type:text;not null;uniqueIndex:idx_attendance_employee_day"`
	Day            string    `gorm:"type:text;not null;uniqueIndex:idx_attendance_employee_day"` // YYYY-MM-DD
	CheckIn        time.Time `gorm:"not null"`
	CheckOut       *time.Time
	RegularHours   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	OvertimeHours  decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (ar *AttendanceRecord) BeforeCreate(_ *gorm.DB) error {
	if ar.ID == "" {
		ar.ID = uuid.New().String()
	}
	return nil
}

// Asset is a depreciable item on the organization's register.
type Asset struct {
	ID              string          `gorm:"type:text;primaryKey"`
	Tag             int64           `gorm:"not null;uniqueIndex"`
	OrganizationID  string          `gorm:"type:text;not null;index"`
	Name            string          `gorm:"type:text;not null"`
	Category        string          `gorm:"type:text;not null;default:''"`
	PurchasePrice   decimal.Decimal `gorm:"type:numeric;not null"`
	ResidualValue   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	UsefulLifeYears int             `gorm:"not null"`
	PurchasedAt     time.Time       `gorm:"not null"`
	Status          string          `gorm:"type:text;not null;default:'Available'"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (a *Asset) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// AssetAssignment hands an asset to an employee until returned.
type AssetAssignment struct {
	ID         string  `gorm:"type:text;primaryKey"`
	AssetID    string  `gorm:"type:text;not null;index"`
	EmployeeID string  `gorm:"type:text;not null;index"`
	AssignedBy string  `gorm:"type:text;not null"`
	Status     string  `gorm:"type:text;not null;default:'Assigned'"`
	AssignedAt time.Time `gorm:"not null"`
	ReturnedAt *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (aa *AssetAssignment) BeforeCreate(_ *gorm.DB) error {
	if aa.ID == "" {
		aa.ID = uuid.New().String()
	}
	return nil
}

// Counter backs the numeric ID allocator. One row per entity name; Value
// only ever moves forward, one caller per increment.
type Counter struct {
	Name  string `gorm:"type:text;primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}

// All returns every model for AutoMigrate, in FK-safe order.
func All() []any {
	return []any{
		&Organization{},
		&User{},
		&Role{},
		&RefreshToken{},
		&Department{},
		&Employee{},
		&StatusChange{},
		&Ticket{},
		&TicketComment{},
		&LeaveRequest{},
		&LeaveBalance{},
		&ExpenseClaim{},
		&ExpenseApproval{},
		&PayrollCycle{},
		&PayrollEntry{},
		&AttendanceRecord{},
		&Asset{},
		&AssetAssignment{},
		&Counter{},
	}
}
