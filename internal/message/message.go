// Package message decodes raw RFC 822 mail into the parts the invoice
// pipeline reads: subject, HTML body and PDF attachments.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
)

// Parse decodes raw message bytes. Single-part and multi-part messages are
// handled alike: the HTML body is the first text/html part, and every part
// whose filename ends in ".pdf" is collected as an attachment in message
// order. Unknown charsets are tolerated.
func Parse(raw []byte) (*models.Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	msg := &models.Message{Subject: decodeSubject(mr.Header)}
	htmlFound := false

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) {
			return nil, fmt.Errorf("read part: %w", err)
		}
		if p == nil {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("read part body: %w", err)
		}

		if !htmlFound && contentType(p.Header) == "text/html" {
			msg.HTML = string(body)
			htmlFound = true
		}

		if name := filename(p.Header); strings.HasSuffix(strings.ToLower(name), ".pdf") {
			msg.Attachments = append(msg.Attachments, models.Attachment{
				Filename: name,
				Data:     body,
			})
		}
	}

	return msg, nil
}

// decodeSubject returns the RFC 2047 decoded subject, or the raw header
// value when decoding fails.
func decodeSubject(h mail.Header) string {
	subject, err := h.Subject()
	if err != nil {
		return h.Get("Subject")
	}
	return subject
}

type partHeader interface {
	ContentType() (string, map[string]string, error)
	ContentDisposition() (string, map[string]string, error)
}

func contentType(h mail.PartHeader) string {
	ph, ok := h.(partHeader)
	if !ok {
		return ""
	}
	t, _, err := ph.ContentType()
	if err != nil {
		return ""
	}
	return strings.ToLower(t)
}

// filename looks at the Content-Disposition filename first and the
// Content-Type name parameter second.
func filename(h mail.PartHeader) string {
	if ah, ok := h.(*mail.AttachmentHeader); ok {
		if name, err := ah.Filename(); err == nil && name != "" {
			return name
		}
	}
	ph, ok := h.(partHeader)
	if !ok {
		return ""
	}
	if _, params, err := ph.ContentDisposition(); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if _, params, err := ph.ContentType(); err == nil {
		return params["name"]
	}
	return ""
}
