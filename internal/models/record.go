package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NA marks a field whose value could not be extracted.
const NA = "NA"

// Columns are the export column headers, in Record.Row order.
var Columns = []string{"Amount/Balance", "OPID", "Expiry Date"}

// Record is the normalized result for a single invoice email.
type Record struct {
	// Amount is a signed decimal string or NA.
	Amount     string `json:"amount"`
	OperatorID string `json:"operatorId"`
	// ExpiryDate is DD-Mon-YYYY as it appears in the mail, or NA.
	ExpiryDate string `json:"expiryDate"`
}

// Row returns the record fields in export column order.
func (r Record) Row() []string {
	return []string{r.Amount, r.OperatorID, r.ExpiryDate}
}

// Attachment is a PDF attached to a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is the decoded view of one raw mail message.
type Message struct {
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Totals summarizes the amounts of a batch of records.
type Totals struct {
	Total    decimal.Decimal `json:"total"`
	Parsed   int             `json:"parsed"`
	Unparsed int             `json:"unparsed"`
}

// Summarize adds up every amount that parses as a decimal. Amounts such as
// NA or stray source text are counted as unparsed.
func Summarize(records []Record) Totals {
	var t Totals
	for _, r := range records {
		d, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
		if err != nil {
			t.Unparsed++
			continue
		}
		t.Total = t.Total.Add(d)
		t.Parsed++
	}
	return t
}
