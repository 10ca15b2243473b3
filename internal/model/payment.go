package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is a proof-backed payment against a milestone or a purchase order.
// Accepted and rejected payments are immutable.
type Payment struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	TargetType      PaymentTarget `gorm:"size:20;not null;index:idx_payment_target,priority:1" json:"target_type"`
	TargetID        uuid.UUID     `gorm:"type:uuid;not null;index:idx_payment_target,priority:2" json:"target_id"`
	Amount          Money         `gorm:"not null" json:"amount"`
	ProofRef        string        `gorm:"size:512;not null" json:"proof_ref"`
	Status          PaymentStatus `gorm:"size:20;not null;index" json:"status"`
	SubmittedBy     uuid.UUID     `gorm:"type:uuid" json:"submitted_by"`
	DecidedBy       *uuid.UUID    `gorm:"type:uuid" json:"decided_by,omitempty"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	RejectionReason *string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}
