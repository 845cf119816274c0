// Package mailbox wraps an IMAP session that searches one day's mail and
// fetches full messages one at a time.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
)

// DateLayout is the IMAP search date format, e.g. 05-Mar-2025.
const DateLayout = "02-Jan-2006"

const defaultPort = "993"

// Credentials identify the account and server for a session.
type Credentials struct {
	Email    string
	Password string
	Server   string // host or host:port, port 993 when omitted
	Mailbox  string // defaults to INBOX
}

// Session is a logged-in IMAP connection with a selected mailbox.
type Session struct {
	c   *client.Client
	log zerolog.Logger
}

// Address returns server with the default IMAPS port added when none is set.
func Address(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}

// Dial connects over TLS, logs in and selects the mailbox. Any failure is
// returned with the server's error text and leaves no open connection.
func Dial(ctx context.Context, creds Credentials, log zerolog.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := Address(creds.Server)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	return open(c, creds, log.With().Str("server", addr).Logger())
}

// open logs in on an established connection and selects the mailbox
// read-only. The connection is logged out on failure.
func open(c *client.Client, creds Credentials, log zerolog.Logger) (*Session, error) {
	if err := c.Login(creds.Email, creds.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	mbox := creds.Mailbox
	if mbox == "" {
		mbox = "INBOX"
	}
	if _, err := c.Select(mbox, true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("select %s: %w", mbox, err)
	}

	log.Debug().Str("mailbox", mbox).Msg("IMAP session open")
	return &Session{c: c, log: log}, nil
}

// Criteria returns search criteria equivalent to "ON <day>": messages whose
// internal date falls on the given calendar day.
func Criteria(day time.Time) *imap.SearchCriteria {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	criteria := imap.NewSearchCriteria()
	criteria.Since = start
	criteria.Before = start.AddDate(0, 0, 1)
	return criteria
}

// Search returns the sequence numbers of messages received on day, in the
// order the server reports them.
func (s *Session) Search(ctx context.Context, day time.Time) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.c.Search(Criteria(day))
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	s.log.Info().Str("date", day.Format(DateLayout)).Int("count", len(ids)).Msg("Found emails")
	return ids, nil
}

// Fetch returns the full RFC 822 bytes of one message.
func (s *Session) Fetch(ctx context.Context, id uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(id)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seqset, items, messages)
	}()

	raw, readErr := readBody(messages, section, id)

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", id, err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return raw, nil
}

// readBody drains messages and returns the last body read for section.
func readBody(messages <-chan *imap.Message, section *imap.BodySectionName, id uint32) ([]byte, error) {
	var raw []byte
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			readErr = fmt.Errorf("message %d has no body", id)
			continue
		}
		raw, readErr = io.ReadAll(body)
	}
	if readErr != nil {
		return nil, readErr
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d not returned by server", id)
	}
	return raw, nil
}

// Close closes the mailbox and logs out. Both steps are always attempted.
// Closing a session that is already logged out is a no-op.
func (s *Session) Close() error {
	if s.c.State() == imap.LogoutState {
		return nil
	}
	closeErr := s.c.Close()
	logoutErr := s.c.Logout()
	if errors.Is(logoutErr, client.ErrAlreadyLoggedOut) {
		logoutErr = nil
	}
	s.log.Debug().Msg("IMAP session closed")
	return errors.Join(closeErr, logoutErr)
}
