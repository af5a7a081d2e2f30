// Package export writes vaccination records to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/status"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the records
const SheetName = "Vaccinations"

// ContentType is the MIME type of the workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Headers are the worksheet columns, in order
var Headers = []string{"Owner", "Vaccine", "Dose", "Date Given", "Next Due", "Status"}

var columnWidths = []float64{28, 24, 8, 14, 14, 14}

// WriteRecordsXLSX writes records as a single-sheet workbook to w.
// Status is classified against today.
func WriteRecordsXLSX(w io.Writer, records []models.VaccinationRecord, today time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range Headers {
		if err := setCell(f, i+1, 1, header); err != nil {
			return err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range records {
		row := i + 2
		owner := r.UserID
		if r.Owner != nil {
			owner = r.Owner.DisplayName()
		}
		next := r.NextDueTime()

		values := []interface{}{
			owner,
			r.VaccineName,
			r.DoseNumber,
			r.DateGivenTime().Format(models.DateLayout),
			models.FormatDate(next),
			status.Classify(next, today).Label(),
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
