package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

type MilestoneService struct {
	base
}

// CreateMilestoneInput describes a new milestone. Sequence must be the next
// free number of the project.
type CreateMilestoneInput struct {
	Actor     model.Principal
	ProjectID uuid.UUID
	Title     string
	Amount    model.Money
	Sequence  int
}

func NewMilestoneService(deps Deps) *MilestoneService {
	return &MilestoneService{base: newBase(deps, "milestones")}
}

// Create adds a milestone with the project row locked, so concurrent creates
// cannot both pass the budget and sequence checks.
func (s *MilestoneService) Create(ctx context.Context, input CreateMilestoneInput) (*model.Milestone, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.Sequence < 1 {
		return nil, fmt.Errorf("%w: sequence must be at least 1", ErrInvalidInput)
	}

	var milestone *model.Milestone
	err := s.inTx(ctx, func(tx *repository.Store) error {
		project, err := tx.Projects.GetForUpdate(ctx, input.ProjectID)
		if err != nil {
			return notFound(err, "project", input.ProjectID)
		}
		if !project.AcceptsMilestoneChanges() {
			return fmt.Errorf("%w: project is %s", ErrInvalidTransition, project.Status)
		}

		count, err := tx.Milestones.Count(ctx, repository.Filter{Where: map[string]any{"project_id": project.ID}})
		if err != nil {
			return err
		}
		sequence := input.Sequence
		switch {
		case int64(sequence) <= count:
			return fmt.Errorf("%w: sequence %d is already used", ErrDuplicateSequence, sequence)
		case int64(sequence) > count+1:
			return fmt.Errorf("%w: sequence %d leaves a gap after %d", ErrInvalidInput, sequence, count)
		}

		planned, err := tx.SumMilestoneAmounts(ctx, project.ID)
		if err != nil {
			return err
		}
		if !withinBudget(planned, input.Amount, project.ContractValue) {
			return fmt.Errorf("%w: %s planned + %s exceeds %s", ErrOverBudget, planned, input.Amount, project.ContractValue)
		}

		milestone = &model.Milestone{
			ProjectID:     project.ID,
			Sequence:      sequence,
			Title:         strings.TrimSpace(input.Title),
			Amount:        input.Amount,
			Status:        model.MilestoneStatusNotStarted,
			BillingStatus: model.BillingStatusNotBilled,
		}
		if err := tx.Milestones.Create(ctx, milestone); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: sequence %d is already used", ErrDuplicateSequence, sequence)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "milestone", string(milestone.Status), notify.Event{
		Origin:      notify.OriginMilestone,
		Actor:       input.Actor.UserID,
		Title:       "Milestone added",
		Body:        fmt.Sprintf("Milestone %d (%s) for %s", milestone.Sequence, milestone.Title, milestone.Amount),
		ProjectID:   &milestone.ProjectID,
		MilestoneID: &milestone.ID,
	})
	return milestone, nil
}

// SetStatus moves work progress exactly one step forward.
func (s *MilestoneService) SetStatus(ctx context.Context, actor model.Principal, id uuid.UUID, status model.MilestoneStatus) (*model.Milestone, error) {
	if _, err := model.ParseMilestoneStatus(string(status)); err != nil {
		return nil, err
	}

	var milestone *model.Milestone
	err := s.inTx(ctx, func(tx *repository.Store) error {
		m, project, err := s.lockWithProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if !project.AcceptsMilestoneChanges() {
			return fmt.Errorf("%w: project is %s", ErrInvalidTransition, project.Status)
		}
		if !m.Status.CanAdvanceTo(status) {
			return fmt.Errorf("%w: milestone cannot move from %s to %s", ErrInvalidTransition, m.Status, status)
		}

		patch := map[string]any{"status": status}
		if status == model.MilestoneStatusCompleted {
			now := s.now()
			patch["completed_at"] = now
			m.CompletedAt = &now
		}
		if err := tx.Milestones.UpdateIf(ctx, id, map[string]any{"status": m.Status}, patch); err != nil {
			return err
		}
		m.Status = status
		milestone = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "milestone", string(status), notify.Event{
		Origin:      notify.OriginMilestone,
		Actor:       actor.UserID,
		Title:       "Milestone " + strings.ReplaceAll(string(status), "_", " "),
		ProjectID:   &milestone.ProjectID,
		MilestoneID: &milestone.ID,
	})
	return milestone, nil
}

// SetBillingStatus handles the caller-driven billing moves: billing a
// started milestone and un-billing one nobody is paying yet. Paid is only
// reached through payment acceptance.
func (s *MilestoneService) SetBillingStatus(ctx context.Context, actor model.Principal, id uuid.UUID, status model.BillingStatus) (*model.Milestone, error) {
	if _, err := model.ParseBillingStatus(string(status)); err != nil {
		return nil, err
	}
	if status == model.BillingStatusPaid {
		return nil, fmt.Errorf("%w: paid is set by payment acceptance only", ErrInvalidTransition)
	}

	var milestone *model.Milestone
	err := s.inTx(ctx, func(tx *repository.Store) error {
		m, project, err := s.lockWithProject(ctx, tx, id)
		if err != nil {
			return err
		}

		switch {
		case m.BillingStatus == model.BillingStatusNotBilled && status == model.BillingStatusBilled:
			if project.Status == model.ProjectStatusCancelled {
				return fmt.Errorf("%w: project is cancelled", ErrInvalidTransition)
			}
			if !m.Status.AtLeast(model.MilestoneStatusInProgress) {
				return fmt.Errorf("%w: milestone work has not started", ErrInvalidTransition)
			}
		case m.BillingStatus == model.BillingStatusBilled && status == model.BillingStatusNotBilled:
			pending, err := countPending(ctx, tx, model.PaymentTargetMilestone, m.ID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return fmt.Errorf("%w: %d pending payment(s) target this milestone", ErrInvalidTransition, pending)
			}
		default:
			return fmt.Errorf("%w: billing cannot move from %s to %s", ErrInvalidTransition, m.BillingStatus, status)
		}

		if err := tx.Milestones.UpdateIf(ctx, id,
			map[string]any{"billing_status": m.BillingStatus},
			map[string]any{"billing_status": status},
		); err != nil {
			return err
		}
		m.BillingStatus = status
		milestone = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	title := "Milestone billed"
	if status == model.BillingStatusNotBilled {
		title = "Milestone billing withdrawn"
	}
	s.committed(ctx, "milestone_billing", string(status), notify.Event{
		Origin:      notify.OriginMilestone,
		Actor:       actor.UserID,
		Title:       title,
		Body:        fmt.Sprintf("Milestone %d amount %s", milestone.Sequence, milestone.Amount),
		ProjectID:   &milestone.ProjectID,
		MilestoneID: &milestone.ID,
	})
	return milestone, nil
}

func (s *MilestoneService) RecomputeProjectPaymentStatus(ctx context.Context, projectID uuid.UUID) (model.ProjectPaymentStatus, error) {
	var status model.ProjectPaymentStatus
	err := s.inTx(ctx, func(tx *repository.Store) error {
		var err error
		status, err = recomputeProjectPaymentStatus(ctx, tx, projectID)
		return err
	})
	return status, err
}

// UpdateAmount changes the due amount of a milestone nobody has paid toward
// yet, keeping the project within its contract value.
func (s *MilestoneService) UpdateAmount(ctx context.Context, actor model.Principal, id uuid.UUID, amount model.Money) (*model.Milestone, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var milestone *model.Milestone
	err := s.inTx(ctx, func(tx *repository.Store) error {
		m, project, err := s.lockWithProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if !project.AcceptsMilestoneChanges() {
			return fmt.Errorf("%w: project is %s", ErrInvalidTransition, project.Status)
		}
		if m.IsPaid() {
			return fmt.Errorf("%w: milestone is already paid", ErrInvalidTransition)
		}
		accepted, err := tx.SumAcceptedPayments(ctx, model.PaymentTargetMilestone, m.ID)
		if err != nil {
			return err
		}
		if accepted.IsPositive() {
			return fmt.Errorf("%w: milestone has accepted payments", ErrInvalidTransition)
		}

		others, err := tx.SumMilestoneAmounts(ctx, project.ID, m.ID)
		if err != nil {
			return err
		}
		if !withinBudget(others, amount, project.ContractValue) {
			return fmt.Errorf("%w: %s planned + %s exceeds %s", ErrOverBudget, others, amount, project.ContractValue)
		}

		if err := tx.Milestones.Update(ctx, id, map[string]any{"amount": amount}); err != nil {
			return err
		}
		m.Amount = amount
		milestone = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "milestone", "amount_updated", notify.Event{
		Origin:      notify.OriginMilestone,
		Actor:       actor.UserID,
		Title:       "Milestone amount changed",
		Body:        fmt.Sprintf("Milestone %d is now %s", milestone.Sequence, amount),
		ProjectID:   &milestone.ProjectID,
		MilestoneID: &milestone.ID,
	})
	return milestone, nil
}

// Delete removes a milestone no payment points to and closes the sequence
// gap it leaves.
func (s *MilestoneService) Delete(ctx context.Context, actor model.Principal, id uuid.UUID) error {
	var projectID uuid.UUID
	err := s.inTx(ctx, func(tx *repository.Store) error {
		m, project, err := s.lockWithProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if !project.AcceptsMilestoneChanges() {
			return fmt.Errorf("%w: project is %s", ErrInvalidTransition, project.Status)
		}
		payments, err := tx.CountPayments(ctx, model.PaymentTargetMilestone, m.ID)
		if err != nil {
			return err
		}
		if payments > 0 {
			return fmt.Errorf("%w: %d payment(s) target this milestone", ErrInvalidTransition, payments)
		}
		if err := tx.Milestones.Delete(ctx, id); err != nil {
			return err
		}
		projectID = project.ID
		return tx.CloseSequenceGap(ctx, project.ID, m.Sequence)
	})
	if err != nil {
		return err
	}

	s.committed(ctx, "milestone", "deleted", notify.Event{
		Origin:    notify.OriginMilestone,
		Actor:     actor.UserID,
		Title:     "Milestone removed",
		ProjectID: &projectID,
	})
	return nil
}

func (s *MilestoneService) Get(ctx context.Context, id uuid.UUID) (*model.Milestone, error) {
	m, err := s.store.Milestones.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "milestone", id)
	}
	return m, nil
}

func (s *MilestoneService) View(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Milestone, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := projectAccess(ctx, s.store, actor, m.ProjectID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MilestoneService) List(ctx context.Context, projectID uuid.UUID) ([]model.Milestone, error) {
	if _, err := s.store.Projects.Get(ctx, projectID); err != nil {
		return nil, notFound(err, "project", projectID)
	}
	return s.store.Milestones.List(ctx, repository.Filter{Where: map[string]any{"project_id": projectID}})
}

// lockWithProject locks the milestone first and then its project, the same
// order payment acceptance uses.
func (s *MilestoneService) lockWithProject(ctx context.Context, tx *repository.Store, id uuid.UUID) (*model.Milestone, *model.Project, error) {
	m, err := tx.Milestones.GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "milestone", id)
	}
	project, err := tx.Projects.GetForUpdate(ctx, m.ProjectID)
	if err != nil {
		return nil, nil, notFound(err, "project", m.ProjectID)
	}
	return m, project, nil
}

// withinBudget reports whether planned+amount stays within the contract
// value. A sum that does not fit in int64 is over any budget.
func withinBudget(planned, amount, contractValue model.Money) bool {
	total, err := planned.AddChecked(amount)
	return err == nil && total.Cmp(contractValue) <= 0
}
