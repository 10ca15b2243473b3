package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidStatus = errors.New("invalid status")

type QuotationStatus string

const (
	QuotationStatusPending  QuotationStatus = "pending"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusDeclined QuotationStatus = "declined"
)

type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

type ProjectPaymentStatus string

const (
	ProjectPaymentUnpaid        ProjectPaymentStatus = "unpaid"
	ProjectPaymentPartiallyPaid ProjectPaymentStatus = "partially_paid"
	ProjectPaymentPaid          ProjectPaymentStatus = "paid"
)

type MilestoneStatus string

const (
	MilestoneStatusNotStarted MilestoneStatus = "not_started"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
)

type BillingStatus string

const (
	BillingStatusNotBilled BillingStatus = "not_billed"
	BillingStatusBilled    BillingStatus = "billed"
	BillingStatusPaid      BillingStatus = "paid"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusAccepted PaymentStatus = "accepted"
	PaymentStatusRejected PaymentStatus = "rejected"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusOpen          PurchaseOrderStatus = "open"
	PurchaseOrderStatusPartiallyPaid PurchaseOrderStatus = "partially_paid"
	PurchaseOrderStatusPaid          PurchaseOrderStatus = "paid"
	PurchaseOrderStatusClosed        PurchaseOrderStatus = "closed"
)

type PaymentTarget string

const (
	PaymentTargetMilestone     PaymentTarget = "milestone"
	PaymentTargetPurchaseOrder PaymentTarget = "purchase_order"
)

var (
	quotationStatuses     = []QuotationStatus{QuotationStatusPending, QuotationStatusAccepted, QuotationStatusDeclined}
	projectStatuses       = []ProjectStatus{ProjectStatusPlanning, ProjectStatusActive, ProjectStatusCompleted, ProjectStatusCancelled}
	projectPaymentStatus  = []ProjectPaymentStatus{ProjectPaymentUnpaid, ProjectPaymentPartiallyPaid, ProjectPaymentPaid}
	milestoneStatuses     = []MilestoneStatus{MilestoneStatusNotStarted, MilestoneStatusInProgress, MilestoneStatusCompleted}
	billingStatuses       = []BillingStatus{BillingStatusNotBilled, BillingStatusBilled, BillingStatusPaid}
	paymentStatuses       = []PaymentStatus{PaymentStatusPending, PaymentStatusAccepted, PaymentStatusRejected}
	purchaseOrderStatuses = []PurchaseOrderStatus{PurchaseOrderStatusOpen, PurchaseOrderStatusPartiallyPaid, PurchaseOrderStatusPaid, PurchaseOrderStatusClosed}
	paymentTargets        = []PaymentTarget{PaymentTargetMilestone, PaymentTargetPurchaseOrder}
)

func parseClosed[T ~string](kind, raw string, allowed []T) (T, error) {
	value := T(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range allowed {
		if candidate == value {
			return value, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", ErrInvalidStatus, kind, raw)
}

func ParseQuotationStatus(raw string) (QuotationStatus, error) {
	return parseClosed("quotation status", raw, quotationStatuses)
}

func ParseProjectStatus(raw string) (ProjectStatus, error) {
	return parseClosed("project status", raw, projectStatuses)
}

func ParseProjectPaymentStatus(raw string) (ProjectPaymentStatus, error) {
	return parseClosed("project payment status", raw, projectPaymentStatus)
}

func ParseMilestoneStatus(raw string) (MilestoneStatus, error) {
	return parseClosed("milestone status", raw, milestoneStatuses)
}

func ParseBillingStatus(raw string) (BillingStatus, error) {
	return parseClosed("billing status", raw, billingStatuses)
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return parseClosed("payment status", raw, paymentStatuses)
}

func ParsePurchaseOrderStatus(raw string) (PurchaseOrderStatus, error) {
	return parseClosed("purchase order status", raw, purchaseOrderStatuses)
}

func ParsePaymentTarget(raw string) (PaymentTarget, error) {
	return parseClosed("payment target", raw, paymentTargets)
}

// UnmarshalText makes JSON binding reject unknown values.
func (s *MilestoneStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseMilestoneStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *BillingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBillingStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (t *PaymentTarget) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// rank orders milestone work states; transitions move forward one step.
func (s MilestoneStatus) rank() int {
	switch s {
	case MilestoneStatusNotStarted:
		return 0
	case MilestoneStatusInProgress:
		return 1
	case MilestoneStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether next is exactly one step forward from s.
func (s MilestoneStatus) CanAdvanceTo(next MilestoneStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

func (s MilestoneStatus) AtLeast(other MilestoneStatus) bool {
	return s.rank() >= other.rank()
}

func (s QuotationStatus) IsTerminal() bool {
	return s == QuotationStatusAccepted || s == QuotationStatusDeclined
}

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusAccepted || s == PaymentStatusRejected
}

// ProjectPaymentStatusFor is the only way a project's payment status is
// derived: unpaid when nothing is accepted, paid once accepted covers the
// contract value, partially paid otherwise.
func ProjectPaymentStatusFor(accepted, contractValue Money) ProjectPaymentStatus {
	switch {
	case accepted <= 0:
		return ProjectPaymentUnpaid
	case accepted.Cmp(contractValue) >= 0:
		return ProjectPaymentPaid
	default:
		return ProjectPaymentPartiallyPaid
	}
}

// PurchaseOrderStatusFor derives the payment-driven status from the running
// balance. Closed is manual and never produced here.
func PurchaseOrderStatusFor(balance, total Money) PurchaseOrderStatus {
	switch {
	case balance <= 0:
		return PurchaseOrderStatusPaid
	case balance.Cmp(total) >= 0:
		return PurchaseOrderStatusOpen
	default:
		return PurchaseOrderStatusPartiallyPaid
	}
}
