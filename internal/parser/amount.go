package parser

import "strings"

// Normalize converts a raw amount with an optional Dr/Cr marker into a signed
// amount string. Credits are negative; debits and unmarked amounts are left
// unsigned. A marker suffixed to raw takes precedence over balanceType, which
// may be empty.
//
// No numeric validation is done: "NA" or malformed source text passes
// through with only separators and whitespace removed.
func Normalize(raw, balanceType string) string {
	amount := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))

	lower := strings.ToLower(amount)
	switch {
	case strings.HasSuffix(lower, "cr"):
		return "-" + strings.TrimSpace(amount[:len(amount)-2])
	case strings.HasSuffix(lower, "dr"):
		return strings.TrimSpace(amount[:len(amount)-2])
	}

	switch strings.ToLower(strings.TrimSpace(balanceType)) {
	case "cr":
		return "-" + amount
	case "dr":
		return amount
	}
	return amount
}
