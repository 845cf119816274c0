package mailbox

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/rs/zerolog"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"imap.gmail.com", "imap.gmail.com:993"},
		{"imap.example.com:143", "imap.example.com:143"},
		{"127.0.0.1:1993", "127.0.0.1:1993"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Address(tt.input); got != tt.expected {
				t.Errorf("Address(%q): got %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCriteria(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	day := time.Date(2025, time.March, 5, 23, 30, 0, 0, loc)

	c := Criteria(day)

	if got := c.Since.Format(DateLayout); got != "05-Mar-2025" {
		t.Errorf("since: got %s, want 05-Mar-2025", got)
	}
	if got := c.Before.Format(DateLayout); got != "06-Mar-2025" {
		t.Errorf("before: got %s, want 06-Mar-2025", got)
	}
	if c.Before.Sub(c.Since) != 24*time.Hour {
		t.Errorf("expected a one-day window, got %v", c.Before.Sub(c.Since))
	}
}

// newTestSession opens a session on an in-memory IMAP server. The memory
// backend has one user ("username"/"password") with one INBOX message.
func newTestSession(t *testing.T, creds Credentials) (*Session, error) {
	t.Helper()

	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	c, err := client.Dial(l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return open(c, creds, zerolog.Nop())
}

func validCreds() Credentials {
	return Credentials{Email: "username", Password: "password"}
}

func TestSession_FetchAndClose(t *testing.T) {
	s, err := newTestSession(t, validCreds())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := s.Search(context.Background(), time.Now()); err != nil {
		t.Errorf("search: %v", err)
	}

	raw, err := s.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Contains(raw, []byte("Subject:")) {
		t.Errorf("expected full RFC 822 message, got %q", raw)
	}

	if _, err := s.Fetch(context.Background(), 99); err == nil {
		t.Error("expected error fetching a missing message")
	}

	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if s.c.State() != imap.LogoutState {
		t.Errorf("expected logged out, got state %v", s.c.State())
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestSession_CancelledContext(t *testing.T) {
	s, err := newTestSession(t, validCreds())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Search(ctx, time.Now()); !errors.Is(err, context.Canceled) {
		t.Errorf("search: expected context.Canceled, got %v", err)
	}
	if _, err := s.Fetch(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("fetch: expected context.Canceled, got %v", err)
	}
}

func TestOpen_Failures(t *testing.T) {
	tests := []struct {
		name   string
		creds  Credentials
		prefix string
	}{
		{"bad password", Credentials{Email: "username", Password: "wrong"}, "failed to connect to IMAP server: "},
		{"missing mailbox", Credentials{Email: "username", Password: "password", Mailbox: "Archive"}, "select Archive: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newTestSession(t, tt.creds)
			if err == nil {
				s.Close()
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("got %q, want prefix %q", err, tt.prefix)
			}
		})
	}
}

func TestReadBody(t *testing.T) {
	section := &imap.BodySectionName{Peek: true}

	feed := func(msgs ...*imap.Message) <-chan *imap.Message {
		ch := make(chan *imap.Message, len(msgs))
		for _, m := range msgs {
			ch <- m
		}
		close(ch)
		return ch
	}

	t.Run("body", func(t *testing.T) {
		// Servers answer BODY.PEEK[] with BODY[].
		msg := &imap.Message{Body: map[*imap.BodySectionName]imap.Literal{
			{}: bytes.NewBufferString("Subject: hi\r\n\r\nbody"),
		}}
		raw, err := readBody(feed(msg), section, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(raw) != "Subject: hi\r\n\r\nbody" {
			t.Errorf("got %q", raw)
		}
	})

	t.Run("no body", func(t *testing.T) {
		msg := &imap.Message{Body: map[*imap.BodySectionName]imap.Literal{}}
		if _, err := readBody(feed(msg), section, 7); err == nil || err.Error() != "message 7 has no body" {
			t.Errorf("expected no-body error, got %v", err)
		}
	})

	t.Run("not returned", func(t *testing.T) {
		if _, err := readBody(feed(), section, 7); err == nil || err.Error() != "message 7 not returned by server" {
			t.Errorf("expected not-returned error, got %v", err)
		}
	})
}
