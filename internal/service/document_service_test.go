package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/pdf"
)

type statementCapture struct {
	got model.ProjectStatement
}

func (c *statementCapture) ProjectStatement(statement model.ProjectStatement) ([]byte, error) {
	c.got = statement
	return []byte("xlsx"), nil
}

func TestDocumentService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	excel := &statementCapture{}
	docs := NewDocumentService(h.deps(), pdf.NewGenerator(), excel)

	project := h.project(t, 30000, 70000)
	first := h.milestone(t, project.ID, 1, 30000)
	h.milestone(t, project.ID, 2, 70000)
	h.bill(t, first.ID)
	h.pay(t, model.PaymentTargetMilestone, first.ID, 30000)
	h.submit(t, model.PaymentTargetMilestone, first.ID, 500)

	t.Run("quotation pdf", func(t *testing.T) {
		result, err := docs.QuotationPDF(ctx, project.QuotationID)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if result.FileName != "quotation-office-fit-out-20260420.pdf" {
			t.Errorf("file name = %q", result.FileName)
		}
		if !bytes.HasPrefix(result.Content, []byte("%PDF-")) {
			t.Error("content is not a pdf")
		}
	})

	t.Run("project statement", func(t *testing.T) {
		result, err := docs.ProjectStatement(ctx, project.ID)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if result.FileName != "statement-office-fit-out-20260420.xlsx" {
			t.Errorf("file name = %q", result.FileName)
		}
		got := excel.got
		if got.Paid != 30000 || got.Outstanding != 70000 {
			t.Errorf("paid/outstanding = %s/%s", got.Paid, got.Outstanding)
		}
		if len(got.Milestones) != 2 || got.Milestones[0].Sequence != 1 {
			t.Errorf("milestones = %+v", got.Milestones)
		}
		if len(got.Payments) != 2 {
			t.Errorf("payments = %d, want 2", len(got.Payments))
		}
		if !got.GeneratedAt.Equal(testClock) {
			t.Errorf("generated at = %s", got.GeneratedAt)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := docs.ProjectStatement(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := docs.QuotationPDF(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBuildFileName(t *testing.T) {
	day := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	id := uuid.MustParse("6f1c1c8e-3b2a-4c55-9d3e-0f9a8b7c6d5e")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Roof Repair", want: "statement-roof-repair-20260102.xlsx"},
		{name: "symbols trimmed", in: "  #Lobby/2  ", want: "statement-lobby-2-20260102.xlsx"},
		{name: "empty falls back to id", in: "***", want: "statement-6f1c1c8e-3b2a-4c55-9d3e-0f9a8b7c6d5e-20260102.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildFileName("statement", tt.in, id, dateOnly(day), "xlsx"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
