package service

import (
	"context"
	"sort"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/crewdeck/crewdeck/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseService routes reimbursement claims through ordered approval
// levels. Forwarding hands the claim to the next pending level; running out
// of levels approves it.
type ExpenseService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewExpenseService(db *gorm.DB, seq *sequence.Allocator) *ExpenseService {
	return &ExpenseService{db: db, seq: seq}
}

// ApproverInput names one approval level on a new claim.
type ApproverInput struct {
	Level      int    `json:"level" validate:"min=1"`
	ApproverID string `json:"approver_id" validate:"required"`
}

// CreateClaimInput is the payload for drafting a claim.
type CreateClaimInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Category    string          `json:"category" validate:"max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Approvers   []ApproverInput `json:"approvers" validate:"required,min=1,dive"`
}

// ClaimFilter narrows listings.
type ClaimFilter struct {
	Status string
}

// Create drafts a claim with its approval chain. Distinct ascending levels
// are required; the chain is fixed at creation.
func (s *ExpenseService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateClaimInput) (*model.ExpenseClaim, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if actor.OrganizationID == "" {
		return nil, apperr.Validation("submitter has no organization to claim in")
	}
	seen := map[int]bool{}
	for _, a := range input.Approvers {
		if seen[a.Level] {
			return nil, apperr.Validation("approval levels must be distinct")
		}
		seen[a.Level] = true
	}
	approvers := append([]ApproverInput(nil), input.Approvers...)
	sort.Slice(approvers, func(i, j int) bool { return approvers[i].Level < approvers[j].Level })

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	claim := &model.ExpenseClaim{
		OrganizationID: actor.OrganizationID,
		SubmittedBy:    actor.UserID,
		Amount:         input.Amount,
		Currency:       currency,
		Category:       input.Category,
		Description:    input.Description,
		Status:         string(workflow.ExpenseFlow.Initial),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.ClaimNumber)
		if err != nil {
			return err
		}
		claim.Number = number
		if err := tx.Create(claim).Error; err != nil {
			return err
		}
		for _, a := range approvers {
			approval := &model.ExpenseApproval{
				ClaimID:    claim.ID,
				Level:      a.Level,
				ApproverID: a.ApproverID,
				Decision:   "Pending",
			}
			if err := tx.Create(approval).Error; err != nil {
				return err
			}
		}
		return workflow.Record(tx, workflow.ExpenseFlow, claim.ID, workflow.ExpenseFlow.Initial, actor.UserID, "drafted", now)
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// List returns claims visible in scope. Actors without the approval
// capability see claims they submitted or sit on the chain of.
func (s *ExpenseService) List(ctx context.Context, actor authz.Actor, scope authz.Scope, filter ClaimFilter) ([]model.ExpenseClaim, error) {
	claims := []model.ExpenseClaim{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.ExpenseClaim{}))
	if !actor.Can(authz.CapApproveExpense) {
		q = q.Where("submitted_by = ? OR id IN (?)",
			actor.UserID,
			s.db.Model(&model.ExpenseApproval{}).Select("claim_id").Where("approver_id = ?", actor.UserID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	err := q.Order("number ASC").Find(&claims).Error
	return claims, err
}

func (s *ExpenseService) load(ctx context.Context, id string) (*model.ExpenseClaim, []model.ExpenseApproval, error) {
	var claim model.ExpenseClaim
	if err := s.db.WithContext(ctx).First(&claim, "id = ?", id).Error; err != nil {
		return nil, nil, notFoundOr(err, "expense claim")
	}
	var approvals []model.ExpenseApproval
	if err := s.db.WithContext(ctx).Where("claim_id = ?", id).
		Order("level ASC").Find(&approvals).Error; err != nil {
		return nil, nil, err
	}
	return &claim, approvals, nil
}

func claimPolicy(claim *model.ExpenseClaim, approvals []model.ExpenseApproval) authz.Policy {
	assignees := make([]string, 0, len(approvals))
	for _, a := range approvals {
		assignees = append(assignees, a.ApproverID)
	}
	return authz.Policy{
		Entity:      "expense claim",
		AdminCaps:   []authz.Capability{authz.CapApproveExpense},
		OwnerIDs:    []string{claim.SubmittedBy},
		AssigneeIDs: assignees,
	}
}

// currentLevel returns the lowest still-pending approval, or nil when the
// chain is exhausted.
func currentLevel(approvals []model.ExpenseApproval) *model.ExpenseApproval {
	for i := range approvals {
		if approvals[i].Decision == "Pending" {
			return &approvals[i]
		}
	}
	return nil
}

// Get returns one claim the actor may see.
func (s *ExpenseService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.ExpenseClaim, error) {
	claim, approvals, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, claim.OrganizationID, claimPolicy(claim, approvals), authz.ActionRead); err != nil {
		return nil, err
	}
	return claim, nil
}

// Approvals returns the approval chain, by level.
func (s *ExpenseService) Approvals(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.ExpenseApproval, error) {
	claim, approvals, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, claim.OrganizationID, claimPolicy(claim, approvals), authz.ActionRead); err != nil {
		return nil, err
	}
	return approvals, nil
}

// Submit moves a draft into the approval chain. Submitter only.
func (s *ExpenseService) Submit(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.ExpenseClaim, error) {
	claim, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(claim.OrganizationID) {
		return nil, apperr.NotFound("expense claim")
	}
	if claim.SubmittedBy != actor.UserID {
		return nil, apperr.Forbidden("only the submitter may submit this claim")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return workflow.Apply(tx, workflow.ExpenseFlow, claim.ID,
			workflow.Status(claim.Status), "Submitted", actor.UserID, "", time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	claim.Status = "Submitted"
	return claim, nil
}

// Decide records the current level's decision and moves the claim:
// Approved and Rejected settle it; Forwarded hands it to the next pending
// level, or approves when none remains. Only the current approver or a
// holder of the approval capability may decide.
func (s *ExpenseService) Decide(ctx context.Context, actor authz.Actor, scope authz.Scope, id, decision, comment string) (*model.ExpenseClaim, error) {
	switch decision {
	case "Approved", "Rejected", "Forwarded":
	default:
		return nil, apperr.Validation("decision must be Approved, Rejected or Forwarded")
	}

	claim, approvals, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(claim.OrganizationID) {
		return nil, apperr.NotFound("expense claim")
	}
	current := currentLevel(approvals)
	if current == nil {
		return nil, apperr.Conflict("no pending approval level remains")
	}
	if current.ApproverID != actor.UserID && !actor.Can(authz.CapApproveExpense) {
		return nil, apperr.Forbidden("not the current approver for this claim")
	}

	now := time.Now().UTC()
	target := workflow.Status(decision)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(current).Updates(map[string]any{
			"decision":   decision,
			"comment":    comment,
			"decided_at": now,
		}).Error; err != nil {
			return err
		}

		if decision == "Forwarded" {
			var remaining int64
			if err := tx.Model(&model.ExpenseApproval{}).
				Where("claim_id = ? AND decision = ?", claim.ID, "Pending").
				Count(&remaining).Error; err != nil {
				return err
			}
			if remaining == 0 {
				target = "Approved"
			}
		}
		return workflow.Apply(tx, workflow.ExpenseFlow, claim.ID,
			workflow.Status(claim.Status), target, actor.UserID, comment, now)
	})
	if err != nil {
		return nil, err
	}
	claim.Status = string(target)
	return claim, nil
}

// Reimburse pays out an approved claim. Approval capability required.
func (s *ExpenseService) Reimburse(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.ExpenseClaim, error) {
	claim, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(claim.OrganizationID) {
		return nil, apperr.NotFound("expense claim")
	}
	if err := authz.Require(actor, authz.CapApproveExpense); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.ExpenseFlow, claim.ID,
			workflow.Status(claim.Status), "Reimbursed", actor.UserID, "", now); err != nil {
			return err
		}
		return tx.Model(claim).Update("reimbursed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	claim.Status = "Reimbursed"
	claim.ReimbursedAt = &now
	return claim, nil
}

// History returns the claim's transition log, oldest first.
func (s *ExpenseService) History(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.StatusChange, error) {
	claim, approvals, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, claim.OrganizationID, claimPolicy(claim, approvals), authz.ActionRead); err != nil {
		return nil, err
	}
	return workflow.History(s.db.WithContext(ctx), workflow.ExpenseFlow, claim.ID)
}
