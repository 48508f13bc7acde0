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

// TicketService runs the help desk: SLA stamping, assignment, the
// resolution lifecycle and the comment thread.
type TicketService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewTicketService(db *gorm.DB, seq *sequence.Allocator) *TicketService {
	return &TicketService{db: db, seq: seq}
}

// CreateTicketInput is the payload for opening a ticket.
type CreateTicketInput struct {
	Subject     string `json:"subject" validate:"required,min=1,max=300"`
	Description string `json:"description" validate:"max=5000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
}

// TicketFilter narrows listings.
type TicketFilter struct {
	Status   string
	Priority string
}

// Create opens a ticket with SLA deadlines derived from its priority. Any
// member of an organization may file one.
func (s *TicketService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateTicketInput) (*model.Ticket, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}
	orgID := actor.OrganizationID
	if orgID == "" {
		return nil, apperr.Validation("requester has no organization to file the ticket in")
	}

	priority := input.Priority
	if priority == "" {
		priority = "Medium"
	}
	now := time.Now().UTC()
	responseDue, resolutionDue := calc.SLADeadlines(priority, now)

	tk := &model.Ticket{
		OrganizationID: orgID,
		RequesterID:    actor.UserID,
		Subject:        input.Subject,
		Description:    input.Description,
		Priority:       priority,
		Status:         string(workflow.TicketFlow.Initial),
		ResponseDue:    responseDue,
		ResolutionDue:  resolutionDue,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextTx(tx, sequence.TicketNumber)
		if err != nil {
			return err
		}
		tk.Number = number
		if err := tx.Create(tk).Error; err != nil {
			return err
		}
		return workflow.Record(tx, workflow.TicketFlow, tk.ID, workflow.TicketFlow.Initial, actor.UserID, "opened", now)
	})
	if err != nil {
		return nil, err
	}
	return tk, nil
}

// List returns tickets visible in scope. Actors without the handling
// capability only see tickets they requested or are assigned to.
func (s *TicketService) List(ctx context.Context, actor authz.Actor, scope authz.Scope, filter TicketFilter) ([]model.Ticket, error) {
	tickets := []model.Ticket{}
	q := scope.Filter(s.db.WithContext(ctx).Model(&model.Ticket{}))
	if !actor.Can(authz.CapHandleTickets) {
		q = q.Where("requester_id = ? OR assigned_to_id = ?", actor.UserID, actor.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	err := q.Order("number ASC").Find(&tickets).Error
	return tickets, err
}

func (s *TicketService) load(ctx context.Context, id string) (*model.Ticket, error) {
	var tk model.Ticket
	if err := s.db.WithContext(ctx).First(&tk, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "ticket")
	}
	return &tk, nil
}

func ticketPolicy(tk *model.Ticket) authz.Policy {
	p := authz.Policy{
		Entity:    "ticket",
		AdminCaps: []authz.Capability{authz.CapHandleTickets},
		OwnerIDs:  []string{tk.RequesterID},
	}
	if tk.AssignedToID != nil {
		p.AssigneeIDs = []string{*tk.AssignedToID}
	}
	return p
}

// Get returns one ticket the actor may see.
func (s *TicketService) Get(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) (*model.Ticket, error) {
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, tk.OrganizationID, ticketPolicy(tk), authz.ActionRead); err != nil {
		return nil, err
	}
	return tk, nil
}

// Assign hands the ticket to an agent and moves it to Pending when it is
// still Open. Handling capability required.
func (s *TicketService) Assign(ctx context.Context, actor authz.Actor, scope authz.Scope, id, assigneeID string) (*model.Ticket, error) {
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(tk.OrganizationID) {
		return nil, apperr.NotFound("ticket")
	}
	if err := authz.Require(actor, authz.CapHandleTickets); err != nil {
		return nil, err
	}
	if workflow.TicketFlow.Terminal(workflow.Status(tk.Status)) {
		return nil, apperr.Conflict("ticket is closed")
	}
	var assignee model.User
	if err := s.db.WithContext(ctx).First(&assignee, "id = ?", assigneeID).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(tk).Updates(map[string]any{
			"assigned_to_id": assigneeID,
			"updated_at":     now,
		}).Error; err != nil {
			return err
		}
		if tk.Status == string(workflow.TicketFlow.Initial) {
			if err := workflow.Apply(tx, workflow.TicketFlow, tk.ID, "Open", "Pending", actor.UserID, "assigned", now); err != nil {
				return err
			}
			tk.Status = "Pending"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tk.AssignedToID = &assigneeID
	return tk, nil
}

// Transition moves the ticket through its lifecycle. Resolving and
// escalating is reserved for the assignee or an agent; the requester may
// close a resolved ticket. Escalation re-derives the SLA deadlines.
func (s *TicketService) Transition(ctx context.Context, actor authz.Actor, scope authz.Scope, id, to, reason string) (*model.Ticket, error) {
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, tk.OrganizationID, ticketPolicy(tk), authz.ActionTransition); err != nil {
		return nil, err
	}

	isAgent := actor.Can(authz.CapHandleTickets) ||
		(tk.AssignedToID != nil && *tk.AssignedToID == actor.UserID)
	if to != "Closed" && !isAgent {
		return nil, apperr.Forbidden("only the assignee or an agent may move this ticket")
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.TicketFlow, tk.ID,
			workflow.Status(tk.Status), workflow.Status(to), actor.UserID, reason, now); err != nil {
			return err
		}
		switch to {
		case "Resolved":
			return tx.Model(tk).Updates(map[string]any{
				"resolved_at": now,
				"resolved_by": actor.UserID,
			}).Error
		case "Escalated":
			responseDue, resolutionDue := calc.SLADeadlines(tk.Priority, now)
			return tx.Model(tk).Updates(map[string]any{
				"response_due":   responseDue,
				"resolution_due": resolutionDue,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tk.Status = to
	return tk, nil
}

// Comment appends to the ticket thread. Requester, assignee and agents only.
func (s *TicketService) Comment(ctx context.Context, actor authz.Actor, scope authz.Scope, id, body string) (*model.TicketComment, error) {
	if body == "" {
		return nil, apperr.Validation("comment body is required")
	}
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, tk.OrganizationID, ticketPolicy(tk), authz.ActionComment); err != nil {
		return nil, err
	}
	comment := &model.TicketComment{
		TicketID: tk.ID,
		AuthorID: actor.UserID,
		Body:     body,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Comments returns the thread, oldest first.
func (s *TicketService) Comments(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.TicketComment, error) {
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, tk.OrganizationID, ticketPolicy(tk), authz.ActionRead); err != nil {
		return nil, err
	}
	comments := []model.TicketComment{}
	err = s.db.WithContext(ctx).Where("ticket_id = ?", tk.ID).
		Order("created_at ASC, id ASC").Find(&comments).Error
	return comments, err
}

// History returns the ticket's transition log, oldest first.
func (s *TicketService) History(ctx context.Context, actor authz.Actor, scope authz.Scope, id string) ([]model.StatusChange, error) {
	tk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, scope, tk.OrganizationID, ticketPolicy(tk), authz.ActionRead); err != nil {
		return nil, err
	}
	return workflow.History(s.db.WithContext(ctx), workflow.TicketFlow, tk.ID)
}
