package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/metrics"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

type PaymentService struct {
	base
}

type SubmitPaymentInput struct {
	Actor      model.Principal
	TargetType model.PaymentTarget
	TargetID   uuid.UUID
	Amount     model.Money
	ProofRef   attachment.Ref
}

type PaymentFilter struct {
	TargetType model.PaymentTarget
	TargetID   uuid.UUID
	Status     model.PaymentStatus
}

func NewPaymentService(deps Deps) *PaymentService {
	return &PaymentService{base: newBase(deps, "payments")}
}

// Submit records a pending payment backed by a staged proof file. When the
// payment is refused the proof is cleaned up.
func (s *PaymentService) Submit(ctx context.Context, input SubmitPaymentInput) (*model.Payment, error) {
	if input.ProofRef.IsZero() {
		return nil, fmt.Errorf("%w: proof of payment is required", ErrInvalidInput)
	}

	var (
		payment *model.Payment
		links   notify.Event
	)
	err := s.files.Bind(ctx, input.ProofRef, func(ctx context.Context) error {
		if !input.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
		}
		target, err := model.ParsePaymentTarget(string(input.TargetType))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if input.Actor.IsClient() && target != model.PaymentTargetMilestone {
			return fmt.Errorf("%w: clients pay milestones only", ErrPermissionDenied)
		}

		return s.inTx(ctx, func(tx *repository.Store) error {
			switch target {
			case model.PaymentTargetMilestone:
				m, err := tx.Milestones.GetForUpdate(ctx, input.TargetID)
				if err != nil {
					return targetMissing(err, "milestone", input.TargetID)
				}
				if err := projectAccess(ctx, tx, input.Actor, m.ProjectID); err != nil {
					return err
				}
				if !m.IsBilled() {
					return fmt.Errorf("%w: milestone %d is %s", ErrInvalidTransition, m.Sequence, m.BillingStatus)
				}
				links.ProjectID = &m.ProjectID
				links.MilestoneID = &m.ID
			case model.PaymentTargetPurchaseOrder:
				po, err := tx.PurchaseOrders.GetForUpdate(ctx, input.TargetID)
				if err != nil {
					return targetMissing(err, "purchase order", input.TargetID)
				}
				if !po.AcceptsPayments() {
					return fmt.Errorf("%w: purchase order %s is %s", ErrInvalidTransition, po.Number, po.Status)
				}
				if input.Amount.Cmp(po.Balance) > 0 {
					return fmt.Errorf("%w: amount %s exceeds balance %s", ErrNegativeBalance, input.Amount, po.Balance)
				}
			}

			payment = &model.Payment{
				TargetType:  target,
				TargetID:    input.TargetID,
				Amount:      input.Amount,
				ProofRef:    input.ProofRef.String(),
				Status:      model.PaymentStatusPending,
				SubmittedBy: input.Actor.UserID,
			}
			return tx.Payments.Create(ctx, payment)
		})
	})
	if err != nil {
		return nil, err
	}

	links.Origin = notify.OriginPayment
	links.Actor = input.Actor.UserID
	links.Title = "Payment submitted"
	links.Body = fmt.Sprintf("%s payment of %s is awaiting review", strings.ReplaceAll(string(payment.TargetType), "_", " "), payment.Amount)
	s.committed(ctx, "payment", string(model.PaymentStatusPending), links)
	return payment, nil
}

// Accept decides a pending payment and, in the same transaction, settles its
// target: a milestone becomes paid once covered and its project's payment
// status is refreshed; a purchase order's balance and status are recomputed.
// Of two concurrent accepts exactly one succeeds.
func (s *PaymentService) Accept(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Payment, error) {
	if !actor.CanDecidePayments() {
		return nil, ErrPermissionDenied
	}

	var (
		links  notify.Event
		target model.PaymentTarget
	)
	err := s.inTx(ctx, func(tx *repository.Store) error {
		payment, err := s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Payments.UpdateIf(ctx, id,
			map[string]any{"status": model.PaymentStatusPending},
			map[string]any{
				"status":     model.PaymentStatusAccepted,
				"decided_by": actor.UserID,
				"decided_at": s.now(),
			},
		); err != nil {
			return err
		}

		switch payment.TargetType {
		case model.PaymentTargetMilestone:
			m, err := applyMilestonePayment(ctx, tx, payment.TargetID)
			if err != nil {
				return err
			}
			links.ProjectID = &m.ProjectID
			links.MilestoneID = &m.ID
			links.Body = fmt.Sprintf("Milestone %d is %s", m.Sequence, m.BillingStatus)
		case model.PaymentTargetPurchaseOrder:
			po, err := recomputePurchaseOrderBalance(ctx, tx, payment.TargetID)
			if err != nil {
				return err
			}
			links.Body = fmt.Sprintf("Purchase order %s balance is %s", po.Number, po.Balance)
		default:
			return fmt.Errorf("%w: unknown payment target %q", ErrInvalidStatus, payment.TargetType)
		}
		links.Title = fmt.Sprintf("Payment of %s accepted", payment.Amount)
		target = payment.TargetType
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementPaymentDecision(string(target), "accepted")
	links.Origin = notify.OriginPayment
	links.Actor = actor.UserID
	s.committed(ctx, "payment", string(model.PaymentStatusAccepted), links)
	return s.Get(ctx, id)
}

// Reject closes a pending payment without touching any balance.
func (s *PaymentService) Reject(ctx context.Context, actor model.Principal, id uuid.UUID, reason string) (*model.Payment, error) {
	if !actor.CanDecidePayments() {
		return nil, ErrPermissionDenied
	}
	reason = strings.TrimSpace(reason)

	var payment *model.Payment
	err := s.inTx(ctx, func(tx *repository.Store) error {
		var err error
		payment, err = s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		patch := map[string]any{
			"status":     model.PaymentStatusRejected,
			"decided_by": actor.UserID,
			"decided_at": s.now(),
		}
		if reason != "" {
			patch["rejection_reason"] = reason
		}
		return tx.Payments.UpdateIf(ctx, id, map[string]any{"status": model.PaymentStatusPending}, patch)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementPaymentDecision(string(payment.TargetType), "rejected")
	event := notify.Event{
		Origin: notify.OriginPayment,
		Actor:  actor.UserID,
		Title:  fmt.Sprintf("Payment of %s rejected", payment.Amount),
		Body:   reason,
	}
	if payment.TargetType == model.PaymentTargetMilestone {
		event.MilestoneID = &payment.TargetID
	}
	s.committed(ctx, "payment", string(model.PaymentStatusRejected), event)
	return s.Get(ctx, id)
}

// ReplaceProof swaps the proof of a pending payment. The old file is removed
// after commit.
func (s *PaymentService) ReplaceProof(ctx context.Context, actor model.Principal, id uuid.UUID, ref attachment.Ref) (*model.Payment, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: proof of payment is required", ErrInvalidInput)
	}
	err := s.files.Replace(ctx, ref, func(ctx context.Context) (attachment.Ref, error) {
		var old attachment.Ref
		err := s.inTx(ctx, func(tx *repository.Store) error {
			payment, err := s.lockPending(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := paymentAccess(ctx, tx, actor, payment); err != nil {
				return err
			}
			old = attachment.Ref(payment.ProofRef)
			return tx.Payments.UpdateIf(ctx, id,
				map[string]any{"status": model.PaymentStatusPending},
				map[string]any{"proof_ref": ref.String()},
			)
		})
		return old, err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "payment", "proof_replaced", notify.Event{
		Origin: notify.OriginPayment,
		Actor:  actor.UserID,
		Title:  "Payment proof replaced",
	})
	return s.Get(ctx, id)
}

func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.store.Payments.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return payment, nil
}

func (s *PaymentService) View(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := paymentAccess(ctx, s.store, actor, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// List filters payments. Clients only ever see milestone payments on their
// own projects; anything else comes back empty.
func (s *PaymentService) List(ctx context.Context, actor model.Principal, filter PaymentFilter) ([]model.Payment, error) {
	where := map[string]any{}
	if filter.TargetType != "" {
		where["target_type"] = filter.TargetType
	}
	if filter.TargetID != uuid.Nil {
		where["target_id"] = filter.TargetID
	}
	if actor.IsClient() {
		if filter.TargetType != "" && filter.TargetType != model.PaymentTargetMilestone {
			return []model.Payment{}, nil
		}
		owned, err := clientMilestoneIDs(ctx, s.store, actor.OrgID)
		if err != nil {
			return nil, err
		}
		switch {
		case filter.TargetID != uuid.Nil && !slices.Contains(owned, filter.TargetID):
			return []model.Payment{}, nil
		case filter.TargetID == uuid.Nil:
			if len(owned) == 0 {
				return []model.Payment{}, nil
			}
			where["target_id"] = owned
		}
		where["target_type"] = model.PaymentTargetMilestone
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	return s.store.Payments.List(ctx, repository.Filter{Where: where})
}

// OpenProof streams the stored proof file. The caller closes the reader.
func (s *PaymentService) OpenProof(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Payment, io.ReadCloser, error) {
	payment, err := s.View(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.files.Open(ctx, attachment.Ref(payment.ProofRef))
	if err != nil {
		if errors.Is(err, attachment.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: proof of payment %s", ErrNotFound, id)
		}
		return nil, nil, err
	}
	return payment, body, nil
}

func (s *PaymentService) lockPending(ctx context.Context, tx *repository.Store, id uuid.UUID) (*model.Payment, error) {
	payment, err := tx.Payments.GetForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	if !payment.IsPending() {
		return nil, fmt.Errorf("%w: payment is already %s", ErrInvalidTransition, payment.Status)
	}
	return payment, nil
}

// targetMissing reports an unknown payment target as bad input rather than
// a missing resource.
func targetMissing(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s does not exist", ErrInvalidInput, entity, id)
	}
	return err
}
