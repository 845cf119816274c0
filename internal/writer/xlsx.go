package writer

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
)

// XLSXContentType is the MIME type of the spreadsheets produced here.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the name of the single worksheet.
const SheetName = "Email Data"

// XLSXWriter writes records to an unstyled Excel workbook.
type XLSXWriter struct{}

// WriteToFile writes records to an .xlsx file at the given path.
func (w *XLSXWriter) WriteToFile(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, records)
}

// Write writes a workbook with a header row and one string row per record.
func (w *XLSXWriter) Write(out io.Writer, records []models.Record) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeRow(book, 1, models.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		if err := writeRow(book, i+2, r.Row()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := book.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(book *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return book.SetSheetRow(SheetName, cell, &cells)
}
