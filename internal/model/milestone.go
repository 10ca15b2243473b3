package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Milestone is a billable sub-deliverable of a project. Sequence is unique
// and dense (1..n) within its project.
type Milestone struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_milestone_sequence,priority:1" json:"project_id"`
	Sequence      int             `gorm:"not null;uniqueIndex:uq_milestone_sequence,priority:2" json:"sequence"`
	Title         string          `gorm:"size:255" json:"title"`
	Amount        Money           `gorm:"not null" json:"amount"`
	Status        MilestoneStatus `gorm:"size:20;not null" json:"status"`
	BillingStatus BillingStatus   `gorm:"size:20;not null" json:"billing_status"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *Milestone) IsBilled() bool {
	return m.BillingStatus == BillingStatusBilled
}

func (m *Milestone) IsPaid() bool {
	return m.BillingStatus == BillingStatusPaid
}
