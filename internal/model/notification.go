package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is written once by the notification sink and never updated.
type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Origin      string     `gorm:"size:64;not null;index" json:"origin"`
	ActorID     uuid.UUID  `gorm:"type:uuid" json:"actor_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	QuotationID *uuid.UUID `gorm:"type:uuid;index" json:"quotation_id,omitempty"`
	ProjectID   *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	MilestoneID *uuid.UUID `gorm:"type:uuid" json:"milestone_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
