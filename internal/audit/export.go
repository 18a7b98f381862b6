package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes events as a spreadsheet for compliance download.
func WriteXLSX(w io.Writer, events []Event) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Audit Events"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return err
	}

	headers := []string{"ID", "Event Type", "Occurred At", "Payload"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := file.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	for row, event := range events {
		values := []interface{}{
			event.ID,
			string(event.EventType),
			event.OccurredAt.Format("2006-01-02 15:04:05"),
			string(event.Payload),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := file.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := file.SetColWidth(sheet, "B", "B", 24); err != nil {
		return err
	}
	if err := file.SetColWidth(sheet, "C", "D", 40); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	return file.Write(w)
}
