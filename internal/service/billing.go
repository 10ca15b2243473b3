package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

// recomputeProjectPaymentStatus derives the payment status from the stored
// accepted payments. Running it twice yields the same row.
func recomputeProjectPaymentStatus(ctx context.Context, tx *repository.Store, projectID uuid.UUID) (model.ProjectPaymentStatus, error) {
	project, err := tx.Projects.GetForUpdate(ctx, projectID)
	if err != nil {
		return "", notFound(err, "project", projectID)
	}
	accepted, err := tx.SumAcceptedProjectPayments(ctx, projectID)
	if err != nil {
		return "", err
	}
	status := model.ProjectPaymentStatusFor(accepted, project.ContractValue)
	if status == project.PaymentStatus {
		return status, nil
	}
	if err := tx.Projects.Update(ctx, projectID, map[string]any{"payment_status": status}); err != nil {
		return "", err
	}
	return status, nil
}

// recomputePurchaseOrderBalance sets balance = total - accepted payments and
// moves a non-closed order to the status the balance implies.
func recomputePurchaseOrderBalance(ctx context.Context, tx *repository.Store, orderID uuid.UUID) (*model.PurchaseOrder, error) {
	po, err := tx.PurchaseOrders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "purchase order", orderID)
	}
	accepted, err := tx.SumAcceptedPayments(ctx, model.PaymentTargetPurchaseOrder, orderID)
	if err != nil {
		return nil, err
	}
	balance, err := po.TotalAmount.Sub(accepted)
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", po.Number, err)
	}

	status := po.Status
	if !po.IsClosed() {
		status = model.PurchaseOrderStatusFor(balance, po.TotalAmount)
	}
	if balance != po.Balance || status != po.Status {
		if err := tx.PurchaseOrders.Update(ctx, orderID, map[string]any{
			"balance": balance,
			"status":  status,
		}); err != nil {
			return nil, err
		}
	}
	po.Balance = balance
	po.Status = status
	return po, nil
}

// applyMilestonePayment settles the milestone once accepted payments cover
// its amount, then refreshes the owning project.
func applyMilestonePayment(ctx context.Context, tx *repository.Store, milestoneID uuid.UUID) (*model.Milestone, error) {
	m, err := tx.Milestones.GetForUpdate(ctx, milestoneID)
	if err != nil {
		return nil, notFound(err, "milestone", milestoneID)
	}
	if !m.IsBilled() {
		return nil, fmt.Errorf("%w: milestone %d is %s, not billed", ErrInvalidTransition, m.Sequence, m.BillingStatus)
	}
	accepted, err := tx.SumAcceptedPayments(ctx, model.PaymentTargetMilestone, m.ID)
	if err != nil {
		return nil, err
	}
	if accepted.Cmp(m.Amount) >= 0 {
		err := tx.Milestones.UpdateIf(ctx, m.ID,
			map[string]any{"billing_status": model.BillingStatusBilled},
			map[string]any{"billing_status": model.BillingStatusPaid},
		)
		if err != nil {
			return nil, err
		}
		m.BillingStatus = model.BillingStatusPaid
	}
	if _, err := recomputeProjectPaymentStatus(ctx, tx, m.ProjectID); err != nil {
		return nil, err
	}
	return m, nil
}

func countPending(ctx context.Context, tx *repository.Store, target model.PaymentTarget, id uuid.UUID) (int64, error) {
	return tx.CountPayments(ctx, target, id, model.PaymentStatusPending)
}

func ptr[T any](v T) *T {
	return &v
}
