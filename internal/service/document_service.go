package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

type PDFGenerator interface {
	Quotation(doc model.QuotationDocument) ([]byte, error)
}

type ExcelGenerator interface {
	ProjectStatement(statement model.ProjectStatement) ([]byte, error)
}

type DocumentResult struct {
	FileName string
	Content  []byte
}

// DocumentService renders read-only exports. It never mutates state.
type DocumentService struct {
	base
	pdf   PDFGenerator
	excel ExcelGenerator
}

func NewDocumentService(deps Deps, pdf PDFGenerator, excel ExcelGenerator) *DocumentService {
	return &DocumentService{
		base:  newBase(deps, "documents"),
		pdf:   pdf,
		excel: excel,
	}
}

func (s *DocumentService) QuotationPDF(ctx context.Context, id uuid.UUID) (*DocumentResult, error) {
	quotation, err := s.store.Quotations.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "quotation", id)
	}

	issuedAt := s.now()
	content, err := s.pdf.Quotation(model.QuotationDocument{
		Quotation: *quotation,
		IssuedAt:  issuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render quotation: %w", err)
	}

	return &DocumentResult{
		FileName: buildFileName("quotation", quotation.Title, quotation.ID, dateOnly(issuedAt), "pdf"),
		Content:  content,
	}, nil
}

// ProjectStatement exports the milestone schedule and payment ledger of a
// project. Outstanding may go negative when milestones were overpaid.
func (s *DocumentService) ProjectStatement(ctx context.Context, id uuid.UUID) (*DocumentResult, error) {
	project, err := s.store.Projects.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	payments, err := s.store.ListProjectPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	paid, err := s.store.SumAcceptedProjectPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	content, err := s.excel.ProjectStatement(model.ProjectStatement{
		Project:     *project,
		Milestones:  project.Milestones,
		Payments:    payments,
		Paid:        paid,
		Outstanding: project.ContractValue.SubAllowNegative(paid),
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}

	return &DocumentResult{
		FileName: buildFileName("statement", project.Name, project.ID, dateOnly(generatedAt), "xlsx"),
		Content:  content,
	}, nil
}

func buildFileName(kind, name string, id uuid.UUID, day time.Time, ext string) string {
	target := sanitizeFileName(name)
	if target == "" {
		target = id.String()
	}
	return fmt.Sprintf("%s-%s-%s.%s", kind, strings.ToLower(target), day.Format("20060102"), ext)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
