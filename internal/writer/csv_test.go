package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
)

var sampleRecords = []models.Record{
	{Amount: "-1234.56", OperatorID: "OPA1", ExpiryDate: "01-Apr-2025"},
	{Amount: "NA", OperatorID: "OPB2", ExpiryDate: "NA"},
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{Date: "05-Mar-2025"}
	if err := w.Write(&buf, sampleRecords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "# Date,05-Mar-2025") {
		t.Error("expected date metadata row")
	}
	if !strings.Contains(output, "Amount/Balance,OPID,Expiry Date") {
		t.Error("expected column headers")
	}
	if !strings.Contains(output, "-1234.56,OPA1,01-Apr-2025") {
		t.Error("expected first record row")
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	// 1 metadata line + 1 header + 2 records = 4
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d", len(lines))
	}
}

func TestCSVWriter_WriteNoDate(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	if err := w.Write(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "# Date") {
		t.Error("should not have date metadata when Date is empty")
	}
	if strings.TrimSpace(output) != "Amount/Balance,OPID,Expiry Date" {
		t.Errorf("expected header only, got %q", output)
	}
}
