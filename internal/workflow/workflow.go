// Package workflow drives status transitions for every workflow entity
// (tickets, leave requests, expense claims, payroll cycles, asset
// assignments, employee status). Each entity brings its own status
// vocabulary; the transition mechanics are shared: an optimistic
// compare-and-set on the status column plus an append to the shared
// status_changes history. The history is the source of truth — the status
// column is a cached projection of its latest row.
package workflow

import (
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/model"
	"gorm.io/gorm"
)

// Status is one state in an entity's vocabulary.
type Status string

// Vocabulary defines the legal transitions for one entity type.
type Vocabulary struct {
	Entity      string // entity_type recorded in status_changes
	Table       string // entity table carrying the status column
	Initial     Status
	Transitions map[Status][]Status
}

// Terminal reports whether s has no outgoing transitions.
func (v Vocabulary) Terminal(s Status) bool {
	return len(v.Transitions[s]) == 0
}

// CanTransition reports whether from -> to is legal. Transitions out of a
// terminal state always fail, including repeats of the terminal decision.
func (v Vocabulary) CanTransition(from, to Status) error {
	for _, next := range v.Transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.InvalidTransition(string(from), string(to))
}

// Ticket lifecycle. Tickets never reject; they escalate.
var TicketFlow = Vocabulary{
	Entity:  "ticket",
	Table:   "tickets",
	Initial: "Open",
	Transitions: map[Status][]Status{
		"Open":      {"Pending", "Escalated", "Resolved"},
		"Pending":   {"Escalated", "Resolved"},
		"Escalated": {"Resolved"},
		"Resolved":  {"Closed"},
	},
}

// LeaveFlow: every decision is terminal.
var LeaveFlow = Vocabulary{
	Entity:  "leave_request",
	Table:   "leave_requests",
	Initial: "Pending",
	Transitions: map[Status][]Status{
		"Pending": {"Approved", "Rejected", "Cancelled"},
	},
}

// ExpenseFlow: forwarding repeats per approval level until none remain.
var ExpenseFlow = Vocabulary{
	Entity:  "expense_claim",
	Table:   "expense_claims",
	Initial: "Draft",
	Transitions: map[Status][]Status{
		"Draft":     {"Submitted"},
		"Submitted": {"Forwarded", "Approved", "Rejected"},
		"Forwarded": {"Forwarded", "Approved", "Rejected"},
		"Approved":  {"Reimbursed"},
	},
}

// PayrollFlow has no rejection path.
var PayrollFlow = Vocabulary{
	Entity:  "payroll_cycle",
	Table:   "payroll_cycles",
	Initial: "Draft",
	Transitions: map[Status][]Status{
		"Draft":       {"In Progress"},
		"In Progress": {"Completed"},
	},
}

// EmployeeFlow tracks employment status.
var EmployeeFlow = Vocabulary{
	Entity:  "employee",
	Table:   "employees",
	Initial: "Onboarding",
	Transitions: map[Status][]Status{
		"Onboarding":  {"Active"},
		"Active":      {"Suspended", "Offboarding"},
		"Suspended":   {"Active", "Offboarding"},
		"Offboarding": {"Terminated"},
	},
}

// AssignmentFlow covers asset hand-outs.
var AssignmentFlow = Vocabulary{
	Entity:  "asset_assignment",
	Table:   "asset_assignments",
	Initial: "Assigned",
	Transitions: map[Status][]Status{
		"Assigned": {"Returned"},
	},
}

// statusColumn lets EmployeeFlow share the engine even though its column is
// named employment_status.
func (v Vocabulary) statusColumn() string {
	if v.Entity == "employee" {
		return "employment_status"
	}
	return "status"
}

// Apply performs one transition: it checks legality, swaps the status
// column with an optimistic predicate on the expected prior status, and
// appends the history row. Call it inside a transaction when side effects
// (balance updates, resolution stamps) must land atomically with it.
//
// A zero-row update means another actor moved the entity first; the caller
// gets a conflict, never a lost update.
func Apply(tx *gorm.DB, v Vocabulary, entityID string, from, to Status, actorID, reason string, at time.Time) error {
	if err := v.CanTransition(from, to); err != nil {
		return err
	}

	col := v.statusColumn()
	res := tx.Table(v.Table).
		Where("id = ? AND "+col+" = ?", entityID, string(from)).
		Updates(map[string]any{col: string(to), "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("entity status changed concurrently")
	}

	return Record(tx, v, entityID, to, actorID, reason, at)
}

// Record appends a history row without touching the entity. Used at
// creation time so the initial status also comes from the log.
func Record(tx *gorm.DB, v Vocabulary, entityID string, status Status, actorID, reason string, at time.Time) error {
	return tx.Create(&model.StatusChange{
		EntityType: v.Entity,
		EntityID:   entityID,
		Status:     string(status),
		ChangedBy:  actorID,
		Reason:     reason,
		ChangedAt:  at,
	}).Error
}

// History returns the full transition log for one entity, oldest first.
func History(db *gorm.DB, v Vocabulary, entityID string) ([]model.StatusChange, error) {
	var changes []model.StatusChange
	err := db.Where("entity_type = ? AND entity_id = ?", v.Entity, entityID).
		Order("changed_at ASC, id ASC").
		Find(&changes).Error
	return changes, err
}
