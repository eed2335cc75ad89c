package leave

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const balanceSheet = "Balances"

var balanceHeaders = []string{"Employee", "Email", "Leave type", "Year", "Allocated", "Carry over", "Used", "Pending", "Remaining"}

// WriteBalancesXLSX renders ledger rows as a single-sheet workbook.
func WriteBalancesXLSX(w io.Writer, rows []BalanceExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", balanceSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(balanceSheet, "A1", &balanceHeaders); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		b := row.Balance
		values := []any{
			row.EmployeeName,
			row.EmployeeEmail,
			row.LeaveTypeName,
			b.Year,
			b.Allocated,
			b.CarryOver,
			b.Used,
			b.Pending,
			b.Remaining(),
		}
		if err := f.SetSheetRow(balanceSheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(balanceSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// RenderSlip produces a printable one-page PDF summary of a request.
func RenderSlip(req Request) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave request")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)

	line := func(format string, args ...any) {
		pdf.Cell(0, 8, fmt.Sprintf(format, args...))
		pdf.Ln(7)
	}
	line("Reference: %s", req.ID)
	line("Employee: %s", req.EmployeeName)
	line("Leave type: %s", req.LeaveTypeName)
	line("Status: %s", strings.ReplaceAll(string(req.Status), "_", " "))
	if req.Supervisor != nil {
		line("Supervisor: %s", req.Supervisor.Name)
	}
	pdf.Ln(3)
	switch {
	case req.Dated != nil:
		line("Period: %s to %s", req.Dated.StartDate.Format("2006-01-02"), req.Dated.EndDate.Format("2006-01-02"))
		line("Working days: %g", req.Dated.TotalDays)
	case req.Reported != nil:
		line("Occurred on: %s", req.Reported.OccurredOn.Format("2006-01-02"))
		if req.Reported.IsOpenEnded {
			line("Open-ended")
		} else if req.Reported.ClosedOn != nil {
			line("Closed on: %s (%g days)", req.Reported.ClosedOn.Format("2006-01-02"), req.Days())
		}
	}
	line("Reason: %s", req.Reason)

	if len(req.ApprovalHistory) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Approval history")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, entry := range req.ApprovalHistory {
			text := fmt.Sprintf("%s  %s  %s", entry.Timestamp.Format("2006-01-02 15:04"), entry.Level, entry.Decision)
			if entry.Comment != "" {
				text += "  - " + entry.Comment
			}
			pdf.Cell(0, 7, text)
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
