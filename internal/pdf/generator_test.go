package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

func TestQuotation(t *testing.T) {
	lines, total, err := model.BuildQuotationLines([]model.CostLine{
		{Description: "Site survey", Amount: 150000},
		{Description: "Installation", Amount: 850050},
	})
	if err != nil {
		t.Fatalf("build lines: %v", err)
	}
	doc := model.QuotationDocument{
		Quotation: model.Quotation{
			ID:        uuid.New(),
			ClientID:  uuid.New(),
			Title:     "Office fit-out",
			Lines:     lines,
			TotalCost: total,
			Status:    model.QuotationStatusPending,
			CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		IssuedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	content, err := NewGenerator().Quotation(doc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", content[:min(len(content), 8)])
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatAmount(100050); got != "1000.50" {
		t.Errorf("formatAmount = %q", got)
	}
	if got := formatDate(time.Time{}); got != "-" {
		t.Errorf("formatDate(zero) = %q", got)
	}
	if got := safeValue("  "); got != "-" {
		t.Errorf("safeValue(blank) = %q", got)
	}
}
