// Package export renders the visible dashboard window as files: a spreadsheet
// of the readings and a static PNG of the chart.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the readings.
const SheetName = "Weight"

// WriteXLSX writes rows as a workbook with one header row: Date, Time and one
// column per quantity label. Missing values are left empty.
func WriteXLSX(w io.Writer, rows []store.Measurement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := []any{"Date", "Time"}
	for _, q := range quantity.All() {
		header = append(header, q.Label())
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, m := range rows {
		record := make([]any, 0, 2+quantity.Count)
		record = append(record, m.Time.Format("2006-01-02"), m.Time.Format("15:04"))
		for _, v := range m.Values {
			if math.IsNaN(v) {
				record = append(record, nil)
				continue
			}
			record = append(record, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
