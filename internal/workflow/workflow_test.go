package workflow_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/workflow"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		vocab workflow.Vocabulary
		from  workflow.Status
		to    workflow.Status
		legal bool
	}{
		{"ticket open to pending", workflow.TicketFlow, "Open", "Pending", true},
		{"ticket resolved to closed", workflow.TicketFlow, "Resolved", "Closed", true},
		{"ticket closed is terminal", workflow.TicketFlow, "Closed", "Open", false},
		{"ticket cannot reject", workflow.TicketFlow, "Open", "Rejected", false},
		{"leave pending to approved", workflow.LeaveFlow, "Pending", "Approved", true},
		{"leave approved is terminal", workflow.LeaveFlow, "Approved", "Approved", false},
		{"leave rejected is terminal", workflow.LeaveFlow, "Rejected", "Cancelled", false},
		{"expense draft to submitted", workflow.ExpenseFlow, "Draft", "Submitted", true},
		{"expense forwarded repeats", workflow.ExpenseFlow, "Forwarded", "Forwarded", true},
		{"expense approved to reimbursed", workflow.ExpenseFlow, "Approved", "Reimbursed", true},
		{"expense reimbursed is terminal", workflow.ExpenseFlow, "Reimbursed", "Approved", false},
		{"payroll draft to in progress", workflow.PayrollFlow, "Draft", "In Progress", true},
		{"payroll completed is terminal", workflow.PayrollFlow, "Completed", "Draft", false},
		{"payroll has no rejection", workflow.PayrollFlow, "In Progress", "Rejected", false},
		{"employee suspended back to active", workflow.EmployeeFlow, "Suspended", "Active", true},
		{"assignment returned is terminal", workflow.AssignmentFlow, "Returned", "Assigned", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vocab.CanTransition(tt.from, tt.to)
			if tt.legal {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.IsStatus(err, http.StatusConflict))
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, workflow.LeaveFlow.Terminal("Approved"))
	assert.True(t, workflow.TicketFlow.Terminal("Closed"))
	assert.False(t, workflow.TicketFlow.Terminal("Resolved"))
	assert.False(t, workflow.ExpenseFlow.Terminal("Approved"))
}

func seedTicket(t *testing.T, db *gorm.DB) *model.Ticket {
	t.Helper()
	now := time.Now()
	tk := &model.Ticket{
		Number:         1,
		OrganizationID: "org-1",
		RequesterID:    "user-1",
		Subject:        "laptop broken",
		Priority:       "High",
		Status:         "Open",
		ResponseDue:    now.Add(4 * time.Hour),
		ResolutionDue:  now.Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(tk).Error)
	require.NoError(t, workflow.Record(db, workflow.TicketFlow, tk.ID, "Open", "user-1", "created", now))
	return tk
}

func TestApply_StatusMatchesLatestHistory(t *testing.T) {
	db := openTestDB(t)
	tk := seedTicket(t, db)

	require.NoError(t, workflow.Apply(db, workflow.TicketFlow, tk.ID, "Open", "Pending", "agent-1", "picked up", time.Now()))

	var got model.Ticket
	require.NoError(t, db.First(&got, "id = ?", tk.ID).Error)
	assert.Equal(t, "Pending", got.Status)

	history, err := workflow.History(db, workflow.TicketFlow, tk.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, got.Status, history[len(history)-1].Status)
	assert.Equal(t, "agent-1", history[len(history)-1].ChangedBy)
}

func TestApply_StalePriorStatusConflicts(t *testing.T) {
	db := openTestDB(t)
	tk := seedTicket(t, db)

	require.NoError(t, workflow.Apply(db, workflow.TicketFlow, tk.ID, "Open", "Pending", "agent-1", "", time.Now()))

	// A second actor still believing the ticket is Open loses.
	err := workflow.Apply(db, workflow.TicketFlow, tk.ID, "Open", "Escalated", "agent-2", "", time.Now())
	require.Error(t, err)
	assert.True(t, apperr.IsStatus(err, http.StatusConflict))

	// No phantom history row was appended.
	history, err := workflow.History(db, workflow.TicketFlow, tk.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestApply_TerminalStateRejectsFurtherTransitions(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	lr := &model.LeaveRequest{
		Number:         1,
		OrganizationID: "org-1",
		EmployeeID:     "emp-1",
		RequesterID:    "user-1",
		StartDate:      now,
		EndDate:        now.AddDate(0, 0, 2),
		TotalDays:      3,
		Status:         "Pending",
	}
	require.NoError(t, db.Create(lr).Error)

	require.NoError(t, workflow.Apply(db, workflow.LeaveFlow, lr.ID, "Pending", "Approved", "admin-1", "ok", now))

	err := workflow.Apply(db, workflow.LeaveFlow, lr.ID, "Approved", "Approved", "admin-1", "again", now)
	require.Error(t, err)
	assert.True(t, apperr.IsStatus(err, http.StatusConflict))
}

func TestApply_EmployeeStatusColumn(t *testing.T) {
	db := openTestDB(t)
	emp := &model.Employee{
		Number:         1,
		OrganizationID: "org-1",
		MonthlySalary:  decimal.NewFromInt(22000),
		HiredAt:        time.Now(),
	}
	require.NoError(t, db.Create(emp).Error)

	require.NoError(t, workflow.Apply(db, workflow.EmployeeFlow, emp.ID, "Onboarding", "Active", "admin-1", "onboarded", time.Now()))

	var got model.Employee
	require.NoError(t, db.First(&got, "id = ?", emp.ID).Error)
	assert.Equal(t, "Active", got.EmploymentStatus)
}
