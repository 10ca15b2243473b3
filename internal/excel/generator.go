package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

const (
	SummarySheet    = "Summary"
	MilestonesSheet = "Milestones"
	PaymentsSheet   = "Payments"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// ProjectStatement builds a workbook with a summary sheet, the milestone
// schedule and the payment ledger of one project.
func (g *Generator) ProjectStatement(statement model.ProjectStatement) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, SummarySheet, statement)

	if _, err := file.NewSheet(MilestonesSheet); err != nil {
		return nil, err
	}
	g.writeMilestones(file, MilestonesSheet, statement.Milestones)

	if _, err := file.NewSheet(PaymentsSheet); err != nil {
		return nil, err
	}
	g.writePayments(file, PaymentsSheet, statement)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, statement model.ProjectStatement) {
	project := statement.Project

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Project")
	set("B1", project.Name)
	set("A2", "Project ID")
	set("B2", project.ID.String())
	set("A3", "Client ID")
	set("B3", project.ClientID.String())
	set("A4", "Status")
	set("B4", string(project.Status))
	set("A5", "Payment status")
	set("B5", string(project.PaymentStatus))
	set("A6", "Contract value")
	set("B6", formatMoney(project.ContractValue))
	set("A7", "Paid")
	set("B7", formatMoney(statement.Paid))
	set("A8", "Outstanding")
	set("B8", formatMoney(statement.Outstanding))
	set("A9", "Milestones")
	set("B9", len(statement.Milestones))
	set("A10", "Generated at")
	set("B10", formatDateTime(statement.GeneratedAt))

	_ = file.SetColWidth(sheet, "A", "A", 22)
	_ = file.SetColWidth(sheet, "B", "B", 40)
}

func (g *Generator) writeMilestones(file *excelize.File, sheet string, milestones []model.Milestone) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"Sequence", "Title", "Amount", "Status", "Billing status", "Completed at"}
	writeHeader(file, sheet, headers)

	var total model.Money
	for i, m := range milestones {
		row := 2 + i
		set(fmt.Sprintf("A%d", row), m.Sequence)
		set(fmt.Sprintf("B%d", row), m.Title)
		set(fmt.Sprintf("C%d", row), formatMoney(m.Amount))
		set(fmt.Sprintf("D%d", row), string(m.Status))
		set(fmt.Sprintf("E%d", row), string(m.BillingStatus))
		set(fmt.Sprintf("F%d", row), formatTimePtr(m.CompletedAt))
		total = total.Add(m.Amount)
	}

	totalRow := 2 + len(milestones)
	set(fmt.Sprintf("B%d", totalRow), "Total")
	set(fmt.Sprintf("C%d", totalRow), formatMoney(total))

	_ = file.SetColWidth(sheet, "A", "A", 10)
	_ = file.SetColWidth(sheet, "B", "B", 36)
	_ = file.SetColWidth(sheet, "C", "E", 16)
	_ = file.SetColWidth(sheet, "F", "F", 20)
}

func (g *Generator) writePayments(file *excelize.File, sheet string, statement model.ProjectStatement) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	sequences := make(map[string]int, len(statement.Milestones))
	for _, m := range statement.Milestones {
		sequences[m.ID.String()] = m.Sequence
	}

	headers := []string{"Submitted at", "Milestone", "Amount", "Status", "Decided at", "Rejection reason"}
	writeHeader(file, sheet, headers)

	for i, p := range statement.Payments {
		row := 2 + i
		set(fmt.Sprintf("A%d", row), formatDateTime(p.CreatedAt))
		if seq, ok := sequences[p.TargetID.String()]; ok {
			set(fmt.Sprintf("B%d", row), seq)
		}
		set(fmt.Sprintf("C%d", row), formatMoney(p.Amount))
		set(fmt.Sprintf("D%d", row), string(p.Status))
		set(fmt.Sprintf("E%d", row), formatTimePtr(p.DecidedAt))
		set(fmt.Sprintf("F%d", row), formatString(p.RejectionReason))
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 10)
	_ = file.SetColWidth(sheet, "C", "D", 14)
	_ = file.SetColWidth(sheet, "E", "E", 20)
	_ = file.SetColWidth(sheet, "F", "F", 40)
}

func writeHeader(file *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}
}

func formatMoney(value model.Money) string {
	return value.String()
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDateTime(*t)
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
