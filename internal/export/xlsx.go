package export

import (
	"fmt"
	"time"

	"github.com/khony/adzb/internal/store"
	"github.com/xuri/excelize/v2"
)

const negotiationsSheet = "Negotiations"

var negotiationColumns = []struct {
	header string
	width  float64
	value  func(store.Negotiation) any
}{
	{"Subject", 40, func(n store.Negotiation) any { return n.Subject }},
	{"Status", 14, func(n store.Negotiation) any { return n.Status }},
	{"Recipients", 40, func(n store.Negotiation) any { return n.Recipients }},
	{"Created by", 24, func(n store.Negotiation) any { return n.CreatorName }},
	{"Attachments", 12, func(n store.Negotiation) any { return n.AttachmentsCount }},
	{"Evidence", 38, func(n store.Negotiation) any {
		if n.EvidenceID == nil {
			return ""
		}
		return *n.EvidenceID
	}},
	{"Last interaction", 20, func(n store.Negotiation) any { return formatCellTime(n.LastInteractionAt) }},
	{"Created at", 20, func(n store.Negotiation) any { return formatCellTime(n.CreatedAt) }},
}

// NegotiationsWorkbook writes one row per negotiation under a styled header.
func NegotiationsWorkbook(negotiations []store.Negotiation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", negotiationsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E5E7EB"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range negotiationColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(negotiationsSheet, cell, col.header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(negotiationsSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(negotiationColumns), 1)
	if err := f.SetCellStyle(negotiationsSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for r, n := range negotiations {
		row := make([]any, len(negotiationColumns))
		for i, col := range negotiationColumns {
			row[i] = col.value(n)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(negotiationsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(negotiationsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCellTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
