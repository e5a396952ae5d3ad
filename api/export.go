package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/warp/rent-engine/rent"
)

// BuildInvoicePDF renders a one-page invoice for a rent payment.
func BuildInvoicePDF(inv *rent.Invoice) ([]byte, error) {
	p := inv.Payment

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(inv.Number, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Rent Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("Invoice: %s", inv.Number),
		fmt.Sprintf("Issued: %s", inv.GeneratedAt.UTC().Format(time.RFC3339)),
		fmt.Sprintf("Tenant: %s", orDash(inv.TenantName)),
		fmt.Sprintf("Property: %s", orDash(inv.PropertyAddress)),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 7, "Period start", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, "Period end", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, "Due date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 7, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	desc := "Monthly rent"
	if p.IsProRated && p.ProRateDays != nil {
		desc = fmt.Sprintf("Pro-rated, %d days", *p.ProRateDays)
	}
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(35, 7, p.PeriodStart.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, p.PeriodEnd.AddDays(-1).String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, p.DueDate.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 7, desc, "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, p.AmountDue.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.Ln(6)

	status := "Outstanding"
	if p.IsPaid() {
		status = "Paid"
		if p.PaymentDate != nil {
			status = fmt.Sprintf("Paid on %s", p.PaymentDate)
		}
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total due: %s", p.AmountDue.StringFixed(2)))
	pdf.Ln(5)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", status))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.Number, err)
	}
	return buf.Bytes(), nil
}

// BuildCashFlowXLSX renders a projection as a workbook with a summary
// sheet and one row per period.
func BuildCashFlowXLSX(cf CashFlowDTO) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summary, periods := "summary", "periods"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(periods); err != nil {
		return nil, err
	}

	to := cf.To
	if to == "" {
		to = "open"
	}
	rows := [][]any{
		{"Cash Flow Projection"},
		{},
		{"Tenant", cf.TenantID},
		{"From", cf.From},
		{"To", to},
		{"Periods", cf.Summary.Periods},
		{"Scheduled", cf.Summary.Scheduled.InexactFloat64()},
		{"Outstanding", cf.Summary.Outstanding.InexactFloat64()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, err
		}
	}

	header := []any{"Period start", "Period end", "Due date", "Amount", "Status"}
	if err := f.SetSheetRow(periods, "A1", &header); err != nil {
		return nil, err
	}
	for i, e := range cf.Entries {
		row := []any{e.PeriodStart.String(), e.PeriodEnd.String(), e.DueDate.String(), e.Amount.InexactFloat64(), string(e.Status)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(periods, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render cash flow workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
