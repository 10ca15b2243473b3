package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Quotation is a priced proposal sent to a client before work begins.
type Quotation struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Lines       []QuotationLine `gorm:"foreignKey:QuotationID" json:"lines,omitempty"`
	TotalCost   Money           `gorm:"not null" json:"total_cost"`
	Status      QuotationStatus `gorm:"size:20;not null;index" json:"status"`
	ProjectID   *uuid.UUID      `gorm:"type:uuid" json:"project_id,omitempty"`
	DocumentRef *string         `gorm:"size:512" json:"document_ref,omitempty"`
	CreatedBy   uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type QuotationLine struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID uuid.UUID `gorm:"type:uuid;not null;index" json:"quotation_id"`
	Position    int       `gorm:"not null" json:"position"`
	Description string    `gorm:"size:500;not null" json:"description"`
	Amount      Money     `gorm:"not null" json:"amount"`
}

// CostLine is the caller-supplied part of a quotation line.
type CostLine struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (l *QuotationLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (q *Quotation) IsPending() bool {
	return q.Status == QuotationStatusPending
}

// BuildQuotationLines numbers the lines and returns them with their total.
// A total that overflows fails with ErrInvalidAmount.
func BuildQuotationLines(lines []CostLine) ([]QuotationLine, Money, error) {
	result := make([]QuotationLine, 0, len(lines))
	amounts := make([]Money, 0, len(lines))
	for i, line := range lines {
		result = append(result, QuotationLine{
			Position:    i + 1,
			Description: line.Description,
			Amount:      line.Amount,
		})
		amounts = append(amounts, line.Amount)
	}
	total, err := SumChecked(amounts...)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// QuotationDocument is the printable view of a quotation.
type QuotationDocument struct {
	Quotation Quotation
	IssuedAt  time.Time
}
