package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
)

// Invoice mails lay fields out as three table cells: label, colon, value.
// The markup is irregular, so matching is textual rather than a DOM parse.
var (
	dueAmountPattern  = regexp.MustCompile(`(?i)Due\s*Amount\s*</td>\s*<td>:\s*</td>\s*<td[^>]*>(.*?)</td>`)
	operatorIDPattern = regexp.MustCompile(`(?i)OperatorID\s*</td>\s*<td>:\s*</td>\s*<td[^>]*>([A-Z0-9]+)</td>`)
	dueDatePattern    = regexp.MustCompile(`(?i)Due\s*Date\s*</td>\s*<td>:\s*</td>\s*<td[^>]*>(\d{2}-\w{3}-\d{4})</td>`)
)

// Fields are the values read from an invoice mail's HTML body. Each is
// models.NA when its cell is missing.
type Fields struct {
	Amount     string
	OperatorID string
	ExpiryDate string
}

// ExtractFields reads the due amount, operator ID and due date from html.
func ExtractFields(html string) Fields {
	f := Fields{Amount: models.NA, OperatorID: models.NA, ExpiryDate: models.NA}

	if m := dueAmountPattern.FindStringSubmatch(html); m != nil {
		f.Amount = strings.TrimSpace(strings.ReplaceAll(m[1], "&nbsp;", ""))
	}
	if m := operatorIDPattern.FindStringSubmatch(html); m != nil {
		f.OperatorID = m[1]
	}
	if m := dueDatePattern.FindStringSubmatch(html); m != nil {
		f.ExpiryDate = m[1]
	}
	return f
}

// AmountMissing reports whether an HTML amount is nil or zero and must be
// resolved from the attached PDFs instead.
func AmountMissing(amount string) bool {
	switch strings.ToLower(strings.TrimSpace(amount)) {
	case "nil", "na", "0", "0.00", "":
		return true
	}
	return false
}
