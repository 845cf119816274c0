// Package pipeline turns one day's invoice mails into normalized records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/invoice-mail-extractor/internal/logger"
	"github.com/insightdelivered/invoice-mail-extractor/internal/mailbox"
	"github.com/insightdelivered/invoice-mail-extractor/internal/message"
	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
	"github.com/insightdelivered/invoice-mail-extractor/internal/parser"
)

// ErrNoMatches is returned when a run finds no qualifying messages.
var ErrNoMatches = errors.New("no matching emails found")

// DefaultSubjects is the subject allow-list used when none is configured.
var DefaultSubjects = []string{
	"Invoice for R-Soft-SMS: Rental for the Month",
	"Invoice for CNMS ON-Net",
}

// Source yields the raw messages of a mailbox. *mailbox.Session implements it.
type Source interface {
	Search(ctx context.Context, day time.Time) ([]uint32, error)
	Fetch(ctx context.Context, id uint32) ([]byte, error)
	Close() error
}

// Dialer opens a Source for the given account.
type Dialer func(ctx context.Context, creds mailbox.Credentials) (Source, error)

// IMAPDialer returns a Dialer backed by real IMAP sessions.
func IMAPDialer(log zerolog.Logger) Dialer {
	return func(ctx context.Context, creds mailbox.Credentials) (Source, error) {
		s, err := mailbox.Dial(ctx, creds, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// BalanceFunc reads a balance figure from PDF bytes.
type BalanceFunc func(data []byte) (parser.Balance, bool, error)

// Assembler builds records from messages.
type Assembler struct {
	// Subjects holds the subject substrings that mark an invoice mail.
	Subjects []string
	// Balance reads PDF attachments; parser.ReadBalance when nil.
	Balance BalanceFunc
	Log     zerolog.Logger
}

// New returns an Assembler for the given allow-list, falling back to
// DefaultSubjects when subjects is empty.
func New(subjects []string, log zerolog.Logger) *Assembler {
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}
	return &Assembler{Subjects: subjects, Balance: parser.ReadBalance, Log: log}
}

// Qualifies reports whether subject contains one of the allow-listed
// substrings.
func (a *Assembler) Qualifies(subject string) bool {
	for _, s := range a.Subjects {
		if s != "" && strings.Contains(subject, s) {
			return true
		}
	}
	return false
}

// Assemble builds the record for a decoded message. ok is false when the
// subject does not qualify.
func (a *Assembler) Assemble(msg *models.Message) (rec models.Record, ok bool) {
	return a.assemble(msg, a.Log)
}

func (a *Assembler) assemble(msg *models.Message, log zerolog.Logger) (models.Record, bool) {
	log.Debug().Str("subject", msg.Subject).Msg("Processing")
	if !a.Qualifies(msg.Subject) {
		return models.Record{}, false
	}

	fields := parser.ExtractFields(msg.HTML)
	amount := fields.Amount

	if parser.AmountMissing(amount) {
		log.Info().Str("amount", amount).Int("attachments", len(msg.Attachments)).Msg("Due amount is NIL, checking PDF")
		if v, found := a.balanceFromAttachments(msg.Attachments, log); found {
			amount = v
		}
	}
	if strings.TrimSpace(amount) == "" {
		amount = models.NA
	}

	rec := models.Record{
		Amount:     amount,
		OperatorID: fields.OperatorID,
		ExpiryDate: fields.ExpiryDate,
	}
	log.Info().
		Str("amount", rec.Amount).
		Str("opid", rec.OperatorID).
		Str("expiry", rec.ExpiryDate).
		Msg("Extracted")
	return rec, true
}

// balanceFromAttachments returns the first balance found, in attachment order.
func (a *Assembler) balanceFromAttachments(atts []models.Attachment, log zerolog.Logger) (string, bool) {
	read := a.Balance
	if read == nil {
		read = parser.ReadBalance
	}
	for _, att := range atts {
		b, ok, err := read(att.Data)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("file", att.Filename).Msg("Error reading PDF")
		case !ok:
			log.Info().Str("file", att.Filename).Msg("No balance found")
		default:
			log.Info().Str("file", att.Filename).Str("match", string(b.Match)).Str("balance", b.Value).Msg("Using balance from PDF")
			return b.Value, true
		}
	}
	return "", false
}

// AssembleRaw decodes raw message bytes and assembles the record. Decoding
// failures and panics are returned as errors.
func (a *Assembler) AssembleRaw(raw []byte) (rec models.Record, ok bool, err error) {
	return a.assembleRaw(raw, a.Log)
}

func (a *Assembler) assembleRaw(raw []byte, log zerolog.Logger) (rec models.Record, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok, err = models.Record{}, false, fmt.Errorf("panic processing message: %v", r)
		}
	}()

	msg, err := message.Parse(raw)
	if err != nil {
		return models.Record{}, false, err
	}
	rec, ok = a.assemble(msg, log)
	return rec, ok, nil
}

// Run processes every message received on day, one at a time in search
// order. A logger stored in ctx takes precedence over a.Log. Failures of single messages are logged and skipped; a search
// failure or cancelled context aborts the run without partial results.
func (a *Assembler) Run(ctx context.Context, src Source, day time.Time) ([]models.Record, error) {
	base := a.Log
	if l, ok := logger.Lookup(ctx); ok {
		base = l
	}
	log := base.With().Str("run_id", uuid.NewString()).Logger()

	ids, err := src.Search(ctx, day)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := src.Fetch(ctx, id)
		if err != nil {
			log.Warn().Err(err).Uint32("id", id).Msg("Error fetching email")
			continue
		}

		rec, ok, err := a.assembleRaw(raw, log)
		if err != nil {
			log.Warn().Err(err).Uint32("id", id).Msg("Error processing email")
			continue
		}
		if ok {
			records = append(records, rec)
		}
	}

	log.Info().Int("messages", len(ids)).Int("records", len(records)).Msg("Run complete")
	return records, nil
}

// Extract opens a session with dial, runs day through it and closes the
// session on every path. It returns ErrNoMatches when nothing qualified.
func (a *Assembler) Extract(ctx context.Context, dial Dialer, creds mailbox.Credentials, day time.Time) ([]models.Record, error) {
	src, err := dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.Log.Debug().Err(err).Msg("Error closing mailbox session")
		}
	}()

	records, err := a.Run(ctx, src, day)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoMatches
	}
	return records, nil
}
