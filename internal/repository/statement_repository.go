package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

// ListProjectPayments returns every milestone payment of a project ordered by
// milestone sequence and submission time.
func (s *Store) ListProjectPayments(ctx context.Context, projectID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.*
		FROM payments p
		JOIN milestones m ON m.id = p.target_id
		WHERE p.target_type = ?
			AND m.project_id = ?
		ORDER BY m.sequence ASC, p.created_at ASC
	`, model.PaymentTargetMilestone, projectID).Scan(&payments).Error
	if err != nil {
		return nil, translate(err)
	}
	return payments, nil
}

// ListProjectRefs collects every stored file a project and its payments point
// to, so they can be released after the rows are gone.
func (s *Store) ListProjectRefs(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	var refs []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT signed_contract_ref FROM projects
		WHERE id = ? AND signed_contract_ref IS NOT NULL
		UNION ALL
		SELECT p.proof_ref
		FROM payments p
		JOIN milestones m ON m.id = p.target_id
		WHERE p.target_type = ? AND m.project_id = ?
	`, projectID, model.PaymentTargetMilestone, projectID).Scan(&refs).Error
	if err != nil {
		return nil, translate(err)
	}
	return refs, nil
}

// DeleteProjectPayments removes the milestone payments of a project.
func (s *Store) DeleteProjectPayments(ctx context.Context, projectID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM payments
		WHERE target_type = ?
			AND target_id IN (SELECT id FROM milestones WHERE project_id = ?)
	`, model.PaymentTargetMilestone, projectID)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}
