package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
)

// CSVWriter writes records to CSV format.
type CSVWriter struct {
	// Date, when set, is written as a "# Date" metadata row before the header.
	Date string
}

// WriteToFile writes records to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, records)
}

// Write writes records in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, records []models.Record) error {
	writer := csv.NewWriter(out)

	if w.Date != "" {
		if err := writer.Write([]string{"# Date", w.Date}); err != nil {
			return fmt.Errorf("failed to write CSV metadata: %w", err)
		}
	}

	if err := writer.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
