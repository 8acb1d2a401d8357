package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	escalation "dtr-monitor/internal/escalation/domain"
)

const timeLayout = time.RFC3339

// BuildNotificationsXLSX renders an escalation history workbook.
func BuildNotificationsXLSX(notifications []escalation.Notification) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "escalations"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Meter", "DTR", "Abnormality", "Level", "Status", "Created", "Scheduled", "Sent", "Resolved"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, n := range notifications {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), n.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), n.MeterNumber)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), n.DTRNumber)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), n.AbnormalityType)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), n.Level)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), string(n.Status))
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), n.CreatedAt.Format(timeLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), n.ScheduledFor.Format(timeLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), formatOptional(n.SentAt))
		_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", row), formatOptional(n.ResolvedAt))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildNotificationsPDF renders a minimal escalation history document.
func BuildNotificationsPDF(notifications []escalation.Notification, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "DTR Escalation Notifications")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(timeLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", len(notifications)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(30, 6, "Meter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "DTR", "1", 0, "C", false, 0, "")
	pdf.CellFormat(75, 6, "Abnormality", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Level", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Resolved", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, n := range notifications {
		pdf.CellFormat(30, 6, n.MeterNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, n.DTRNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(75, 6, n.AbnormalityType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", n.Level), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, string(n.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, n.CreatedAt.Format(timeLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, formatOptional(n.ResolvedAt), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatOptional(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(timeLayout)
}
