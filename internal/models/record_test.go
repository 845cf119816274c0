package models

import "testing"

func TestRecordRow(t *testing.T) {
	r := Record{Amount: "-1234.56", OperatorID: "OP42", ExpiryDate: "05-Mar-2025"}
	row := r.Row()
	if len(row) != len(Columns) {
		t.Fatalf("row has %d fields, want %d", len(row), len(Columns))
	}
	want := []string{"-1234.56", "OP42", "05-Mar-2025"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d]: got %q, want %q", i, row[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Amount: "500.00"},
		{Amount: "-1234.56"},
		{Amount: NA},
		{Amount: "12a"},
	}

	got := Summarize(records)
	if got.Total.String() != "-734.56" {
		t.Errorf("total: got %s, want -734.56", got.Total.String())
	}
	if got.Parsed != 2 {
		t.Errorf("parsed: got %d, want 2", got.Parsed)
	}
	if got.Unparsed != 2 {
		t.Errorf("unparsed: got %d, want 2", got.Unparsed)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if !got.Total.IsZero() || got.Parsed != 0 || got.Unparsed != 0 {
		t.Errorf("expected zero totals, got %+v", got)
	}
}
