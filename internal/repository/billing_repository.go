package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

// SumAcceptedPayments returns the accepted total paid against the given
// targets of one kind.
func (s *Store) SumAcceptedPayments(ctx context.Context, target model.PaymentTarget, ids ...uuid.UUID) (model.Money, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE target_type = ?
			AND target_id IN ?
			AND status = ?
	`, target, ids, model.PaymentStatusAccepted).Scan(&total).Error
	if err != nil {
		return 0, translate(err)
	}
	return model.Money(total), nil
}

// SumAcceptedProjectPayments totals accepted milestone payments across every
// milestone of the project.
func (s *Store) SumAcceptedProjectPayments(ctx context.Context, projectID uuid.UUID) (model.Money, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN milestones m ON m.id = p.target_id
		WHERE p.target_type = ?
			AND p.status = ?
			AND m.project_id = ?
	`, model.PaymentTargetMilestone, model.PaymentStatusAccepted, projectID).Scan(&total).Error
	if err != nil {
		return 0, translate(err)
	}
	return model.Money(total), nil
}

// SumMilestoneAmounts totals the due amounts of a project's milestones,
// leaving out the excluded ids.
func (s *Store) SumMilestoneAmounts(ctx context.Context, projectID uuid.UUID, exclude ...uuid.UUID) (model.Money, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM milestones
		WHERE project_id = ?
	`
	args := []interface{}{projectID}
	if len(exclude) > 0 {
		query += " AND id NOT IN ?"
		args = append(args, exclude)
	}

	var total int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, translate(err)
	}
	return model.Money(total), nil
}

// CountPayments counts payments against one target, optionally narrowed to
// the given statuses.
func (s *Store) CountPayments(ctx context.Context, target model.PaymentTarget, targetID uuid.UUID, statuses ...model.PaymentStatus) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM payments
		WHERE target_type = ?
			AND target_id = ?
	`
	args := []interface{}{target, targetID}
	query, args = withStatuses(query, "status", args, statuses)

	var count int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// CountProjectPayments counts milestone payments across a project.
func (s *Store) CountProjectPayments(ctx context.Context, projectID uuid.UUID, statuses ...model.PaymentStatus) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM payments p
		JOIN milestones m ON m.id = p.target_id
		WHERE p.target_type = ?
			AND m.project_id = ?
	`
	args := []interface{}{model.PaymentTargetMilestone, projectID}
	query, args = withStatuses(query, "p.status", args, statuses)

	var count int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// CloseSequenceGap shifts every milestone after the removed sequence down by
// one. The shift goes through negative values so the unique
// (project_id, sequence) index never sees two rows with the same number.
func (s *Store) CloseSequenceGap(ctx context.Context, projectID uuid.UUID, removed int) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec(`
		UPDATE milestones
		SET sequence = -(sequence - 1)
		WHERE project_id = ? AND sequence > ?
	`, projectID, removed).Error; err != nil {
		return translate(err)
	}
	if err := db.Exec(`
		UPDATE milestones
		SET sequence = -sequence
		WHERE project_id = ? AND sequence < 0
	`, projectID).Error; err != nil {
		return translate(err)
	}
	return nil
}

func withStatuses(query, column string, args []interface{}, statuses []model.PaymentStatus) (string, []interface{}) {
	if len(statuses) == 0 {
		return query, args
	}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args = append(args, status)
	}
	return query + fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ",")), args
}
