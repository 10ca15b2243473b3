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

type PurchaseOrderService struct {
	base
}

type CreatePurchaseOrderInput struct {
	Actor      model.Principal
	SupplierID uuid.UUID
	Number     string
	Lines      []model.OrderLine
	Document   attachment.Ref
}

type PurchaseOrderFilter struct {
	SupplierID uuid.UUID
	Status     model.PurchaseOrderStatus
}

func NewPurchaseOrderService(deps Deps) *PurchaseOrderService {
	return &PurchaseOrderService{base: newBase(deps, "purchase_orders")}
}

// Create opens an order whose balance equals its total. An empty number is
// generated from the creation date.
func (s *PurchaseOrderService) Create(ctx context.Context, input CreatePurchaseOrderInput) (*model.PurchaseOrder, error) {
	var po *model.PurchaseOrder
	err := s.withAttachment(ctx, input.Document, func(ctx context.Context) error {
		if input.SupplierID == uuid.Nil {
			return fmt.Errorf("%w: supplier_id is required", ErrInvalidInput)
		}
		if err := validateOrderLines(input.Lines); err != nil {
			return err
		}

		number := strings.TrimSpace(input.Number)
		if number == "" {
			number = fmt.Sprintf("PO-%s-%s", s.now().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
		}
		lines, total, err := model.BuildPurchaseOrderLines(input.Lines)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		po = &model.PurchaseOrder{
			SupplierID:  input.SupplierID,
			Number:      number,
			Lines:       lines,
			TotalAmount: total,
			Balance:     total,
			Status:      model.PurchaseOrderStatusOpen,
			CreatedBy:   input.Actor.UserID,
		}
		if !input.Document.IsZero() {
			po.DocumentRef = ptr(input.Document.String())
		}
		if err := s.store.PurchaseOrders.Create(ctx, po); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: purchase order number %s is already used", ErrInvalidInput, number)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "purchase_order", string(model.PurchaseOrderStatusOpen), notify.Event{
		Origin: notify.OriginPurchaseOrder,
		Actor:  input.Actor.UserID,
		Title:  "Purchase order created",
		Body:   fmt.Sprintf("Purchase order %s totals %s", po.Number, po.TotalAmount),
	})
	return po, nil
}

// RecomputeBalance re-derives balance and status from accepted payments.
func (s *PurchaseOrderService) RecomputeBalance(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po *model.PurchaseOrder
	err := s.inTx(ctx, func(tx *repository.Store) error {
		var err error
		po, err = recomputePurchaseOrderBalance(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// Close ends an order manually. Closed is terminal.
func (s *PurchaseOrderService) Close(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.PurchaseOrder, error) {
	var number string
	err := s.inTx(ctx, func(tx *repository.Store) error {
		po, err := tx.PurchaseOrders.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "purchase order", id)
		}
		if po.IsClosed() {
			return fmt.Errorf("%w: purchase order is already closed", ErrInvalidTransition)
		}
		pending, err := countPending(ctx, tx, model.PaymentTargetPurchaseOrder, id)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d pending payment(s) target this order", ErrInvalidTransition, pending)
		}
		number = po.Number
		return tx.PurchaseOrders.UpdateIf(ctx, id,
			map[string]any{"status": po.Status},
			map[string]any{"status": model.PurchaseOrderStatusClosed, "closed_at": s.now()},
		)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "purchase_order", string(model.PurchaseOrderStatusClosed), notify.Event{
		Origin: notify.OriginPurchaseOrder,
		Actor:  actor.UserID,
		Title:  "Purchase order closed",
		Body:   fmt.Sprintf("Purchase order %s was closed", number),
	})
	return s.Get(ctx, id)
}

func (s *PurchaseOrderService) ReplaceDocument(ctx context.Context, actor model.Principal, id uuid.UUID, ref attachment.Ref) (*model.PurchaseOrder, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: document ref is required", ErrInvalidInput)
	}
	err := s.files.Replace(ctx, ref, func(ctx context.Context) (attachment.Ref, error) {
		var old attachment.Ref
		err := s.inTx(ctx, func(tx *repository.Store) error {
			po, err := tx.PurchaseOrders.GetForUpdate(ctx, id)
			if err != nil {
				return notFound(err, "purchase order", id)
			}
			if po.IsClosed() {
				return fmt.Errorf("%w: purchase order is closed", ErrInvalidTransition)
			}
			if po.DocumentRef != nil {
				old = attachment.Ref(*po.DocumentRef)
			}
			return tx.PurchaseOrders.Update(ctx, id, map[string]any{"document_ref": ref.String()})
		})
		return old, err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "purchase_order", "document_replaced", notify.Event{
		Origin: notify.OriginPurchaseOrder,
		Actor:  actor.UserID,
		Title:  "Purchase order document replaced",
	})
	return s.Get(ctx, id)
}

// Delete removes an order with no pending payments, along with its lines and
// resolved payments. Their files are released after commit.
func (s *PurchaseOrderService) Delete(ctx context.Context, actor model.Principal, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}

	var refs []attachment.Ref
	err := s.inTx(ctx, func(tx *repository.Store) error {
		po, err := tx.PurchaseOrders.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "purchase order", id)
		}
		pending, err := countPending(ctx, tx, model.PaymentTargetPurchaseOrder, id)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d pending payment(s) target this order", ErrInvalidTransition, pending)
		}

		payments, err := tx.Payments.List(ctx, repository.Filter{Where: map[string]any{
			"target_type": model.PaymentTargetPurchaseOrder,
			"target_id":   id,
		}})
		if err != nil {
			return err
		}
		for _, payment := range payments {
			refs = append(refs, attachment.Ref(payment.ProofRef))
		}
		if po.DocumentRef != nil {
			refs = append(refs, attachment.Ref(*po.DocumentRef))
		}

		if len(payments) > 0 {
			if _, err := tx.Payments.DeleteWhere(ctx, repository.Filter{Where: map[string]any{
				"target_type": model.PaymentTargetPurchaseOrder,
				"target_id":   id,
			}}); err != nil {
				return err
			}
		}
		if _, err := tx.PurchaseOrderLines.DeleteWhere(ctx, repository.Filter{Where: map[string]any{"purchase_order_id": id}}); err != nil {
			return err
		}
		return tx.PurchaseOrders.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.files.Discard(refs...)
	s.committed(ctx, "purchase_order", "deleted", notify.Event{
		Origin: notify.OriginPurchaseOrder,
		Actor:  actor.UserID,
		Title:  "Purchase order deleted",
	})
	return nil
}

func (s *PurchaseOrderService) Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	po, err := s.store.PurchaseOrders.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "purchase order", id)
	}
	return po, nil
}

func (s *PurchaseOrderService) List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, error) {
	where := map[string]any{}
	if filter.SupplierID != uuid.Nil {
		where["supplier_id"] = filter.SupplierID
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	return s.store.PurchaseOrders.List(ctx, repository.Filter{Where: where})
}

func validateOrderLines(lines []model.OrderLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one order line is required", ErrInvalidInput)
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ProductName) == "" {
			return fmt.Errorf("%w: line %d has no product", ErrInvalidInput, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidInput, i+1)
		}
		if !line.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: line %d unit price must be positive", ErrInvalidInput, i+1)
		}
	}
	return nil
}
