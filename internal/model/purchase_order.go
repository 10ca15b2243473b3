package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseOrder is a commitment to a supplier, paid in parallel to project
// billing. Balance is always TotalAmount minus accepted payments.
type PurchaseOrder struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	SupplierID  uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Number      string              `gorm:"size:64;not null;uniqueIndex" json:"number"`
	Lines       []PurchaseOrderLine `gorm:"foreignKey:PurchaseOrderID" json:"lines,omitempty"`
	TotalAmount Money               `gorm:"not null" json:"total_amount"`
	Balance     Money               `gorm:"not null" json:"balance"`
	Status      PurchaseOrderStatus `gorm:"size:20;not null;index" json:"status"`
	DocumentRef *string             `gorm:"size:512" json:"document_ref,omitempty"`
	CreatedBy   uuid.UUID           `gorm:"type:uuid" json:"created_by"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type PurchaseOrderLine struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	Position        int       `gorm:"not null" json:"position"`
	ProductName     string    `gorm:"size:255;not null" json:"product_name"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	UnitPrice       Money     `gorm:"not null" json:"unit_price"`
	LineTotal       Money     `gorm:"not null" json:"line_total"`
}

// OrderLine is the caller-supplied part of a purchase order line.
type OrderLine struct {
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
}

func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	return nil
}

func (l *PurchaseOrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (po *PurchaseOrder) IsClosed() bool {
	return po.Status == PurchaseOrderStatusClosed
}

// AcceptsPayments reports whether new payments may target the order.
func (po *PurchaseOrder) AcceptsPayments() bool {
	return po.Status == PurchaseOrderStatusOpen || po.Status == PurchaseOrderStatusPartiallyPaid
}

// BuildPurchaseOrderLines prices every line and returns the order total. A
// line total or order total that overflows fails with ErrInvalidAmount.
func BuildPurchaseOrderLines(lines []OrderLine) ([]PurchaseOrderLine, Money, error) {
	result := make([]PurchaseOrderLine, 0, len(lines))
	var total Money
	for i, line := range lines {
		lineTotal, err := line.UnitPrice.MulChecked(line.Quantity)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		if total, err = total.AddChecked(lineTotal); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		result = append(result, PurchaseOrderLine{
			Position:    i + 1,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
	}
	return result, total, nil
}
