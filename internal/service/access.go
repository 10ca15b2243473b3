package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

// ownedBy limits client principals to records of their own organisation.
// Staff pass unchecked.
func ownedBy(actor model.Principal, clientID uuid.UUID) error {
	if actor.IsClient() && actor.OrgID != clientID {
		return ErrPermissionDenied
	}
	return nil
}

func projectAccess(ctx context.Context, store *repository.Store, actor model.Principal, projectID uuid.UUID) error {
	if !actor.IsClient() {
		return nil
	}
	project, err := store.Projects.Get(ctx, projectID)
	if err != nil {
		return notFound(err, "project", projectID)
	}
	return ownedBy(actor, project.ClientID)
}

// paymentAccess lets clients reach only milestone payments on their own
// projects. Purchase orders are internal to the company.
func paymentAccess(ctx context.Context, store *repository.Store, actor model.Principal, payment *model.Payment) error {
	if !actor.IsClient() {
		return nil
	}
	if payment.TargetType != model.PaymentTargetMilestone {
		return ErrPermissionDenied
	}
	m, err := store.Milestones.Get(ctx, payment.TargetID)
	if err != nil {
		return notFound(err, "milestone", payment.TargetID)
	}
	return projectAccess(ctx, store, actor, m.ProjectID)
}

// clientMilestoneIDs lists the milestones on every project of one client.
func clientMilestoneIDs(ctx context.Context, store *repository.Store, clientID uuid.UUID) ([]uuid.UUID, error) {
	projects, err := store.Projects.List(ctx, repository.Filter{Where: map[string]any{"client_id": clientID}})
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, p := range projects {
		for _, m := range p.Milestones {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
