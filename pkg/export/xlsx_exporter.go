package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Transcript"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes summary rows, a bold header row and the data rows.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(sheetName, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		row += 2
	}
	for _, line := range data.Summary {
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{line.Label, line.Value}); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
		row++
	}
	if len(data.Summary) > 0 {
		row++
	}

	headerCell := fmt.Sprintf("A%d", row)
	headers := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheetName, headerCell, &headers); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(data.Headers), row)
	if err != nil {
		return nil, fmt.Errorf("resolve header range: %w", err)
	}
	if err := f.SetCellStyle(sheetName, headerCell, lastHeader, bold); err != nil {
		return nil, fmt.Errorf("style headers: %w", err)
	}

	for _, r := range data.Rows {
		row++
		values := data.record(r)
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &cells); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
