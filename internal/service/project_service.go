package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

type ProjectService struct {
	base
}

type ProjectFilter struct {
	ClientID uuid.UUID
	Status   model.ProjectStatus
}

func NewProjectService(deps Deps) *ProjectService {
	return &ProjectService{base: newBase(deps, "projects")}
}

func (s *ProjectService) Activate(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Project, error) {
	return s.transition(ctx, actor, id, model.ProjectStatusActive, nil, model.ProjectStatusPlanning)
}

// Complete requires every milestone to be billing-paid. A project without
// milestones has nothing outstanding and may complete.
func (s *ProjectService) Complete(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Project, error) {
	return s.transition(ctx, actor, id, model.ProjectStatusCompleted, requireFullyBilled, model.ProjectStatusActive)
}

func (s *ProjectService) Cancel(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Project, error) {
	return s.transition(ctx, actor, id, model.ProjectStatusCancelled, nil, model.ProjectStatusPlanning, model.ProjectStatusActive)
}

func (s *ProjectService) transition(
	ctx context.Context,
	actor model.Principal,
	id uuid.UUID,
	to model.ProjectStatus,
	check func(ctx context.Context, tx *repository.Store, project *model.Project) error,
	from ...model.ProjectStatus,
) (*model.Project, error) {
	var name string
	err := s.inTx(ctx, func(tx *repository.Store) error {
		project, err := tx.Projects.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "project", id)
		}
		if !slices.Contains(from, project.Status) {
			return fmt.Errorf("%w: project cannot move from %s to %s", ErrInvalidTransition, project.Status, to)
		}
		if check != nil {
			if err := check(ctx, tx, project); err != nil {
				return err
			}
		}
		name = project.Name
		return tx.Projects.UpdateIf(ctx, id,
			map[string]any{"status": project.Status},
			map[string]any{"status": to},
		)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "project", string(to), notify.Event{
		Origin:    notify.OriginProject,
		Actor:     actor.UserID,
		Title:     "Project " + string(to),
		Body:      fmt.Sprintf("Project %q is now %s", name, to),
		ProjectID: &id,
	})
	return s.Get(ctx, id)
}

func requireFullyBilled(ctx context.Context, tx *repository.Store, project *model.Project) error {
	open, err := tx.Milestones.Count(ctx, repository.Filter{Where: map[string]any{
		"project_id":     project.ID,
		"billing_status": []model.BillingStatus{model.BillingStatusNotBilled, model.BillingStatusBilled},
	}})
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%w: %d milestone(s) not paid", ErrIncompleteBilling, open)
	}
	return nil
}

// UpdateSignedContract attaches a staged contract file. A superseded file is
// removed after commit.
func (s *ProjectService) UpdateSignedContract(ctx context.Context, actor model.Principal, id uuid.UUID, ref attachment.Ref) (*model.Project, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: signed contract file is required", ErrInvalidInput)
	}
	err := s.files.Replace(ctx, ref, func(ctx context.Context) (attachment.Ref, error) {
		var old attachment.Ref
		err := s.inTx(ctx, func(tx *repository.Store) error {
			project, err := tx.Projects.GetForUpdate(ctx, id)
			if err != nil {
				return notFound(err, "project", id)
			}
			if project.Status != model.ProjectStatusPlanning && project.Status != model.ProjectStatusActive {
				return fmt.Errorf("%w: contract of a %s project is frozen", ErrInvalidTransition, project.Status)
			}
			if project.SignedContractRef != nil {
				old = attachment.Ref(*project.SignedContractRef)
			}
			return tx.Projects.Update(ctx, id, map[string]any{
				"signed_contract_ref": ref.String(),
				"signed_at":           s.now(),
			})
		})
		return old, err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "project", "contract_signed", notify.Event{
		Origin:    notify.OriginProject,
		Actor:     actor.UserID,
		Title:     "Signed contract uploaded",
		ProjectID: &id,
	})
	return s.Get(ctx, id)
}

// Delete removes a project whose milestones are all paid, together with its
// milestones and their resolved payments. Files they referenced are released
// after commit.
func (s *ProjectService) Delete(ctx context.Context, actor model.Principal, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}

	var refs []string
	err := s.inTx(ctx, func(tx *repository.Store) error {
		project, err := tx.Projects.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "project", id)
		}
		if err := requireFullyBilled(ctx, tx, project); err != nil {
			return err
		}
		pending, err := tx.CountProjectPayments(ctx, id, model.PaymentStatusPending)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d pending payment(s) reference this project", ErrInvalidTransition, pending)
		}

		if refs, err = tx.ListProjectRefs(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteProjectPayments(ctx, id); err != nil {
			return err
		}
		if _, err := tx.Milestones.DeleteWhere(ctx, repository.Filter{Where: map[string]any{"project_id": id}}); err != nil {
			return err
		}
		if err := tx.Projects.Delete(ctx, id); err != nil {
			return err
		}
		err = tx.Quotations.Update(ctx, project.QuotationID, map[string]any{"project_id": nil})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	released := make([]attachment.Ref, 0, len(refs))
	for _, ref := range refs {
		released = append(released, attachment.Ref(ref))
	}
	s.files.Discard(released...)

	s.committed(ctx, "project", "deleted", notify.Event{
		Origin:    notify.OriginProject,
		Actor:     actor.UserID,
		Title:     "Project deleted",
		ProjectID: &id,
	})
	return nil
}

func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project, err := s.store.Projects.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return project, nil
}

func (s *ProjectService) View(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Project, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(actor, project.ClientID); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	where := map[string]any{}
	if filter.ClientID != uuid.Nil {
		where["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	return s.store.Projects.List(ctx, repository.Filter{Where: where})
}
