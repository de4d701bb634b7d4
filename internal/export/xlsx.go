package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"raybox-panel/internal/job"
)

// WriteXLSX returns the job table as an XLSX workbook. Plain rows plus a
// header; no styling beyond column widths.
func WriteXLSX(records []*job.Record) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Jobs"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}

	for rowIdx, r := range records {
		for colIdx, value := range recordRow(r) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", rowIdx+2, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 16)
	_ = f.SetColWidth(sheet, "H", "K", 20)
	_ = f.SetColWidth(sheet, "N", "N", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
