package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("empty PDF data")

// ExtractText reads a PDF held in memory and returns the text of each page.
// A page whose text cannot be decoded yields an empty string rather than
// failing the whole document; only an unreadable document is an error.
func ExtractText(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	// The PDF library panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, pageText(r.Page(i)))
	}
	return pages, nil
}

// ExtractTextCombined returns the text of all pages joined by a single space.
func ExtractTextCombined(data []byte) (string, error) {
	pages, err := ExtractText(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, " "), nil
}

// pageText tries plain-text extraction with the page font map, then
// row-based extraction. It never panics.
func pageText(page pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	if page.V.IsNull() {
		return ""
	}

	if s, err := plainText(page); err == nil && strings.TrimSpace(s) != "" {
		return s
	}
	if s, err := rowText(page); err == nil {
		return s
	}
	return ""
}

func plainText(page pdf.Page) (string, error) {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	return page.GetPlainText(fonts)
}

func rowText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		var parts []string
		for _, word := range row.Content {
			parts = append(parts, word.S)
		}
		line := strings.TrimSpace(strings.Join(parts, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
