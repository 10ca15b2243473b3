package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

type QuotationService struct {
	base
}

type CreateQuotationInput struct {
	Actor    model.Principal
	ClientID uuid.UUID
	Title    string
	Lines    []model.CostLine
	Document attachment.Ref
}

type QuotationFilter struct {
	ClientID uuid.UUID
	Status   model.QuotationStatus
}

func NewQuotationService(deps Deps) *QuotationService {
	return &QuotationService{base: newBase(deps, "quotations")}
}

func (s *QuotationService) Create(ctx context.Context, input CreateQuotationInput) (*model.Quotation, error) {
	var quotation *model.Quotation
	err := s.withAttachment(ctx, input.Document, func(ctx context.Context) error {
		if input.ClientID == uuid.Nil {
			return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
		}
		if err := validateCostLines(input.Lines); err != nil {
			return err
		}

		lines, total, err := model.BuildQuotationLines(input.Lines)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		quotation = &model.Quotation{
			ClientID:  input.ClientID,
			Title:     strings.TrimSpace(input.Title),
			Lines:     lines,
			TotalCost: total,
			Status:    model.QuotationStatusPending,
			CreatedBy: input.Actor.UserID,
		}
		if !input.Document.IsZero() {
			quotation.DocumentRef = ptr(input.Document.String())
		}
		return s.store.Quotations.Create(ctx, quotation)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "quotation", string(model.QuotationStatusPending), notify.Event{
		Origin:      notify.OriginQuotation,
		Actor:       input.Actor.UserID,
		Title:       "Quotation created",
		Body:        fmt.Sprintf("Quotation %q for %s was created", quotation.Title, quotation.TotalCost),
		QuotationID: &quotation.ID,
	})
	return quotation, nil
}

// Accept turns a pending quotation into a planning project in one
// transaction. The project starts unpaid with the quotation total as its
// contract value.
func (s *QuotationService) Accept(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Project, error) {
	var project *model.Project
	err := s.inTx(ctx, func(tx *repository.Store) error {
		quotation, err := tx.Quotations.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "quotation", id)
		}
		if err := canDecide(actor, quotation); err != nil {
			return err
		}
		if !quotation.IsPending() {
			return fmt.Errorf("%w: quotation is already %s", ErrInvalidTransition, quotation.Status)
		}

		name := quotation.Title
		if name == "" {
			name = "Project " + quotation.ID.String()[:8]
		}
		project = &model.Project{
			ClientID:      quotation.ClientID,
			QuotationID:   quotation.ID,
			Name:          name,
			Status:        model.ProjectStatusPlanning,
			PaymentStatus: model.ProjectPaymentStatusFor(0, quotation.TotalCost),
			ContractValue: quotation.TotalCost,
		}
		if err := tx.Projects.Create(ctx, project); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: quotation already has a project", ErrInvalidTransition)
			}
			return err
		}

		return tx.Quotations.UpdateIf(ctx, id,
			map[string]any{"status": model.QuotationStatusPending},
			map[string]any{
				"status":     model.QuotationStatusAccepted,
				"project_id": project.ID,
				"decided_at": s.now(),
			},
		)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "quotation", string(model.QuotationStatusAccepted), notify.Event{
		Origin:      notify.OriginQuotation,
		Actor:       actor.UserID,
		Title:       "Quotation accepted",
		Body:        fmt.Sprintf("Project %q was created with contract value %s", project.Name, project.ContractValue),
		QuotationID: &id,
		ProjectID:   &project.ID,
	})
	return project, nil
}

func (s *QuotationService) Decline(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Quotation, error) {
	err := s.inTx(ctx, func(tx *repository.Store) error {
		quotation, err := tx.Quotations.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "quotation", id)
		}
		if err := canDecide(actor, quotation); err != nil {
			return err
		}
		if !quotation.IsPending() {
			return fmt.Errorf("%w: quotation is already %s", ErrInvalidTransition, quotation.Status)
		}
		return tx.Quotations.UpdateIf(ctx, id,
			map[string]any{"status": model.QuotationStatusPending},
			map[string]any{"status": model.QuotationStatusDeclined, "decided_at": s.now()},
		)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "quotation", string(model.QuotationStatusDeclined), notify.Event{
		Origin:      notify.OriginQuotation,
		Actor:       actor.UserID,
		Title:       "Quotation declined",
		QuotationID: &id,
	})
	return s.Get(ctx, id)
}

// UpdateLines replaces every line of a pending quotation and recomputes the
// total.
func (s *QuotationService) UpdateLines(ctx context.Context, actor model.Principal, id uuid.UUID, costLines []model.CostLine) (*model.Quotation, error) {
	if err := validateCostLines(costLines); err != nil {
		return nil, err
	}
	lines, total, err := model.BuildQuotationLines(costLines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	err = s.inTx(ctx, func(tx *repository.Store) error {
		quotation, err := tx.Quotations.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "quotation", id)
		}
		if err := canDecide(actor, quotation); err != nil {
			return err
		}
		if !quotation.IsPending() {
			return fmt.Errorf("%w: lines of a %s quotation are frozen", ErrInvalidTransition, quotation.Status)
		}
		if _, err := tx.QuotationLines.DeleteWhere(ctx, repository.Filter{
			Where: map[string]any{"quotation_id": id},
		}); err != nil {
			return err
		}
		for i := range lines {
			lines[i].QuotationID = id
			if err := tx.QuotationLines.Create(ctx, &lines[i]); err != nil {
				return err
			}
		}
		return tx.Quotations.Update(ctx, id, map[string]any{"total_cost": total})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "quotation", "lines_updated", notify.Event{
		Origin:      notify.OriginQuotation,
		Actor:       actor.UserID,
		Title:       "Quotation updated",
		Body:        fmt.Sprintf("New total %s", total),
		QuotationID: &id,
	})
	return s.Get(ctx, id)
}

// ReplaceDocument points a pending quotation at a newly staged file. The
// previous file is removed only after the change is committed.
func (s *QuotationService) ReplaceDocument(ctx context.Context, actor model.Principal, id uuid.UUID, ref attachment.Ref) (*model.Quotation, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: document ref is required", ErrInvalidInput)
	}
	err := s.files.Replace(ctx, ref, func(ctx context.Context) (attachment.Ref, error) {
		var old attachment.Ref
		err := s.inTx(ctx, func(tx *repository.Store) error {
			quotation, err := tx.Quotations.GetForUpdate(ctx, id)
			if err != nil {
				return notFound(err, "quotation", id)
			}
			if !quotation.IsPending() {
				return fmt.Errorf("%w: document of a %s quotation is frozen", ErrInvalidTransition, quotation.Status)
			}
			if quotation.DocumentRef != nil {
				old = attachment.Ref(*quotation.DocumentRef)
			}
			return tx.Quotations.Update(ctx, id, map[string]any{"document_ref": ref.String()})
		})
		return old, err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "quotation", "document_replaced", notify.Event{
		Origin:      notify.OriginQuotation,
		Actor:       actor.UserID,
		Title:       "Quotation document replaced",
		QuotationID: &id,
	})
	return s.Get(ctx, id)
}

func (s *QuotationService) Get(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	quotation, err := s.store.Quotations.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "quotation", id)
	}
	return quotation, nil
}

// View is Get for a caller: clients only see quotations addressed to them.
func (s *QuotationService) View(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Quotation, error) {
	quotation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(actor, quotation.ClientID); err != nil {
		return nil, err
	}
	return quotation, nil
}

func (s *QuotationService) List(ctx context.Context, filter QuotationFilter) ([]model.Quotation, error) {
	where := map[string]any{}
	if filter.ClientID != uuid.Nil {
		where["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	return s.store.Quotations.List(ctx, repository.Filter{Where: where})
}

func validateCostLines(lines []model.CostLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one cost line is required", ErrInvalidInput)
	}
	for i, line := range lines {
		if strings.TrimSpace(line.Description) == "" {
			return fmt.Errorf("%w: line %d has no description", ErrInvalidInput, i+1)
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("%w: line %d amount must be positive", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// canDecide lets clients decide only quotations addressed to their own
// organisation. Staff may decide any.
func canDecide(actor model.Principal, quotation *model.Quotation) error {
	return ownedBy(actor, quotation.ClientID)
}
