package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID                uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID          uuid.UUID            `gorm:"type:uuid;not null;index" json:"client_id"`
	QuotationID       uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex" json:"quotation_id"`
	Name              string               `gorm:"size:255;not null" json:"name"`
	Status            ProjectStatus        `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus     ProjectPaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	ContractValue     Money                `gorm:"not null" json:"contract_value"`
	SignedContractRef *string              `gorm:"size:512" json:"signed_contract_ref,omitempty"`
	SignedAt          *time.Time           `json:"signed_at,omitempty"`
	Milestones        []Milestone          `gorm:"foreignKey:ProjectID" json:"milestones,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AcceptsMilestoneChanges reports whether milestones may still be added or
// progressed.
func (p *Project) AcceptsMilestoneChanges() bool {
	return !p.Status.IsTerminal()
}

// ProjectStatement is the exported billing view of a project.
type ProjectStatement struct {
	Project     Project
	Milestones  []Milestone
	Payments    []Payment
	Paid        Money
	Outstanding Money
	GeneratedAt time.Time
}
