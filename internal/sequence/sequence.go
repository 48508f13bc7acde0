// Package sequence issues the human-facing sequential IDs (employee
// numbers, ticket numbers, asset tags) from a shared counters table.
package sequence

import (
	"context"
	"fmt"

	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter names used across the application.
const (
	OrganizationNumber = "organization_number"
	DepartmentNumber   = "department_number"
	EmployeeNumber     = "employee_number"
	TicketNumber       = "ticket_number"
	LeaveNumber        = "leave_request_number"
	ClaimNumber        = "expense_claim_number"
	CycleNumber        = "payroll_cycle_number"
	AssetTag           = "asset_tag"
)

// Allocator hands out unique, strictly increasing integers per counter
// name. The increment-and-read is a single UPDATE ... RETURNING statement,
// so concurrent callers can never observe the same value.
type Allocator struct {
	db *gorm.DB
}

// New creates an Allocator backed by the given GORM DB.
func New(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// Next reserves and returns the next value for name. If the counter store
// is unavailable the caller's entity creation must fail with it; there is
// no non-unique fallback.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	return next(a.db.WithContext(ctx), name)
}

// NextTx is Next inside an existing transaction, for creations that must
// allocate and insert atomically.
func (a *Allocator) NextTx(tx *gorm.DB, name string) (int64, error) {
	return next(tx, name)
}

func next(tx *gorm.DB, name string) (int64, error) {
	// Ensure the row exists; a concurrent creator wins harmlessly.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Counter{Name: name, Value: 0}).Error; err != nil {
		return 0, fmt.Errorf("ensure counter %q: %w", name, err)
	}

	var value int64
	res := tx.Raw("UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value", name).Scan(&value)
	if res.Error != nil {
		return 0, fmt.Errorf("increment counter %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("counter %q missing after upsert", name)
	}
	return value, nil
}
