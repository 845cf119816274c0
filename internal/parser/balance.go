package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/invoice-mail-extractor/internal/extractor"
)

// Match names the pattern that located a balance.
type Match string

const (
	MatchPrimary  Match = "primary"
	MatchFallback Match = "fallback"
)

var (
	// "Balance Amount (A+B-C) : 1,234.56 Cr", marker optional
	balancePattern = regexp.MustCompile(`(?i)Balance\s*Amount\s*\(A\+B-C\)\s*[:\s]*([\d.,]+)\s*(Dr|Cr)?`)
	// "Balance Amount ... 1,234.56 Dr", marker required
	balanceFallbackPattern = regexp.MustCompile(`(?i)Balance\s*Amount.*?([\d.,]+)\s*(Dr|Cr)`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Balance is a normalized balance figure and the pattern it came from.
type Balance struct {
	Value string
	Match Match
}

// FindBalance searches extracted document text for the balance figure.
// ok is false when neither pattern matches.
func FindBalance(text string) (b Balance, ok bool) {
	cleaned := whitespaceRun.ReplaceAllString(text, " ")

	if m := balancePattern.FindStringSubmatch(cleaned); m != nil {
		return Balance{Value: Normalize(strings.TrimSpace(m[1]), m[2]), Match: MatchPrimary}, true
	}
	if m := balanceFallbackPattern.FindStringSubmatch(cleaned); m != nil {
		return Balance{Value: Normalize(strings.TrimSpace(m[1]), m[2]), Match: MatchFallback}, true
	}
	return Balance{}, false
}

// ReadBalance extracts the balance figure from raw PDF bytes. err is set
// only when the document cannot be read at all; a readable document without
// a balance returns ok == false and a nil error.
func ReadBalance(data []byte) (b Balance, ok bool, err error) {
	text, err := extractor.ExtractTextCombined(data)
	if err != nil {
		return Balance{}, false, err
	}
	b, ok = FindBalance(text)
	return b, ok, nil
}

// ExtractBalance returns the normalized balance from raw PDF bytes. Any
// input that is not a readable PDF is reported as not found.
func ExtractBalance(data []byte) (string, bool) {
	b, ok, err := ReadBalance(data)
	if err != nil || !ok {
		return "", false
	}
	return b.Value, true
}
