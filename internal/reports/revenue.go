// Package reports renders admin exports.
package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	RevenueSheet       = "Revenue"
	XLSXContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	revenueNumberStyle = "#,##0.00"
)

var revenueHeader = []interface{}{"Course ID", "Title", "Enrollments", "Revenue"}

// RevenueFilename names an export generated at t.
func RevenueFilename(t time.Time) string {
	return fmt.Sprintf("revenue-%s.xlsx", t.UTC().Format("20060102-150405"))
}

// RevenueWorkbook renders the report as a single-sheet workbook with a total row.
// Amounts the backend sent in an unreadable form are written as text.
func RevenueWorkbook(report *models.RevenueReport, currency string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), RevenueSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	format := revenueNumberStyle
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}

	header := append([]interface{}{}, revenueHeader...)
	if currency != "" {
		header[3] = fmt.Sprintf("Revenue (%s)", currency)
	}
	if err := f.SetSheetRow(RevenueSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(RevenueSheet, "A1", "D1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	row := 2
	var rows []models.RevenueRow
	if report != nil {
		rows = report.Rows
	}
	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{r.CourseID, r.Title, r.Enrollments, amount(r.Revenue)}
		if err := f.SetSheetRow(RevenueSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(2, row)
	totalCell, _ := excelize.CoordinatesToCellName(4, row)
	if err := f.SetCellValue(RevenueSheet, totalLabel, "Total"); err != nil {
		return nil, fmt.Errorf("write total label: %w", err)
	}
	if report != nil && report.Total != "" {
		err = f.SetCellValue(RevenueSheet, totalCell, amount(report.Total))
	} else if row > 2 {
		first, _ := excelize.CoordinatesToCellName(4, 2)
		last, _ := excelize.CoordinatesToCellName(4, row-1)
		err = f.SetCellFormula(RevenueSheet, totalCell, fmt.Sprintf("SUM(%s:%s)", first, last))
	} else {
		err = f.SetCellValue(RevenueSheet, totalCell, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("write total: %w", err)
	}
	if err := f.SetCellStyle(RevenueSheet, totalLabel, totalCell, bold); err != nil {
		return nil, fmt.Errorf("style total: %w", err)
	}

	moneyFrom, _ := excelize.CoordinatesToCellName(4, 2)
	if err := f.SetCellStyle(RevenueSheet, moneyFrom, totalCell, money); err != nil {
		return nil, fmt.Errorf("style amounts: %w", err)
	}
	if err := f.SetColWidth(RevenueSheet, "A", "A", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(RevenueSheet, "B", "B", 40); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func amount(n json.Number) interface{} {
	minor, err := models.ToMinorUnits(n)
	if err != nil {
		return n.String()
	}
	return float64(minor) / 100
}
