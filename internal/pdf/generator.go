package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

// Generator renders quotation sheets with the built-in Helvetica face, so no
// font files are needed at runtime.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

var lineColWidths = []float64{15, 125, 40}

func (g *Generator) Quotation(doc model.QuotationDocument) ([]byte, error) {
	q := doc.Quotation

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Quotation %s", q.ID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, "QUOTATION", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(safeValue(q.Title)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	infoRow(pdf, g.fontName, "Reference", q.ID.String())
	infoRow(pdf, g.fontName, "Client", q.ClientID.String())
	infoRow(pdf, g.fontName, "Issued", formatDate(doc.IssuedAt))
	infoRow(pdf, g.fontName, "Created", formatDate(q.CreatedAt))
	infoRow(pdf, g.fontName, "Status", strings.ToUpper(string(q.Status)))
	if q.DecidedAt != nil {
		infoRow(pdf, g.fontName, "Decided", formatDate(*q.DecidedAt))
	}
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Cost breakdown", "", 1, "L", false, 0, "")

	drawTableRow(pdf, g.fontName, []string{"#", "Description", "Amount"}, lineColWidths, true)
	for _, line := range q.Lines {
		drawTableRow(pdf, g.fontName, []string{
			fmt.Sprintf("%d", line.Position),
			tr(line.Description),
			formatAmount(line.Amount),
		}, lineColWidths, false)
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %s", formatAmount(q.TotalCost)), "", 1, "R", false, 0, "")

	if q.Status == model.QuotationStatusPending {
		pdf.Ln(6)
		pdf.SetFont(g.fontName, "", 10)
		pdf.MultiCell(0, 5, "This quotation is awaiting the client's decision. Acceptance opens a project with the total above as its contract value.", "", "L", false)
	}

	pdf.Ln(8)
	signatureBlock(pdf, g.fontName, "Client")
	signatureBlock(pdf, g.fontName, "Issued by")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func infoRow(pdf *gofpdf.Fpdf, fontName, label, value string) {
	pdf.SetFont(fontName, "B", 10)
	pdf.CellFormat(35, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, fontName, label string) {
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s: ______________________", label), "", 1, "L", false, 0, "")
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value model.Money) string {
	return value.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
