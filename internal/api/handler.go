package api

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/invoice-mail-extractor/internal/logger"
	"github.com/insightdelivered/invoice-mail-extractor/internal/mailbox"
	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
	"github.com/insightdelivered/invoice-mail-extractor/internal/pipeline"
	"github.com/insightdelivered/invoice-mail-extractor/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

//go:embed static/index.html
var indexHTML []byte

// ExtractResponse is the JSON response from /api/extract.
type ExtractResponse struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Date     string          `json:"date,omitempty"`
	Records  []models.Record `json:"records,omitempty"`
	Total    string          `json:"total,omitempty"`
	Unparsed int             `json:"unparsed,omitempty"`
	Count    int             `json:"count"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Assembler *pipeline.Assembler
	Dial      pipeline.Dialer
	// IMAPServer is used when the form leaves imap_server empty.
	IMAPServer string
	Mailbox    string
	Log        zerolog.Logger
	// Now stamps download filenames; time.Now when nil.
	Now func() time.Time
}

// NewApp builds a fiber app serving h with the given request body limit.
func NewApp(h *Handler, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(requestLogger(h.Log))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/", h.HandleIndex)
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
}

// HandleIndex serves the embedded extraction form.
func (h *Handler) HandleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// HandleHealth reports service status and version.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

// HandleExtract runs one extraction for the posted account and date and
// returns the records as a spreadsheet download (or CSV / JSON).
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	dateStr := strings.TrimSpace(c.FormValue("date"))
	server := strings.TrimSpace(c.FormValue("imap_server"))
	if server == "" {
		server = h.IMAPServer
	}
	format := strings.ToLower(strings.TrimSpace(c.FormValue("format", "xlsx")))

	if email == "" || password == "" || dateStr == "" {
		return writeError(c, fiber.StatusBadRequest, "Missing required fields")
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
	}

	switch format {
	case "xlsx", "csv", "json":
	default:
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown format: %q. Use xlsx, csv, or json.", format))
	}

	creds := mailbox.Credentials{
		Email:    email,
		Password: password,
		Server:   server,
		Mailbox:  h.Mailbox,
	}

	records, err := h.Assembler.Extract(c.UserContext(), h.Dial, creds, day)
	if errors.Is(err, pipeline.ErrNoMatches) {
		return writeError(c, fiber.StatusNotFound, "No matching emails found")
	}
	if err != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Str("date", dateStr).Msg("Extraction failed")
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}

	if format == "json" {
		totals := models.Summarize(records)
		return c.JSON(ExtractResponse{
			Success:  true,
			Date:     day.Format(mailbox.DateLayout),
			Records:  records,
			Total:    totals.Total.StringFixed(2),
			Unparsed: totals.Unparsed,
			Count:    len(records),
		})
	}

	var buf bytes.Buffer
	contentType := writer.XLSXContentType
	if format == "csv" {
		contentType = "text/csv"
		err = (&writer.CSVWriter{}).Write(&buf, records)
	} else {
		err = (&writer.XLSXWriter{}).Write(&buf, records)
	}
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Spreadsheet generation failed: %v", err))
	}

	c.Attachment(h.filename(day, format))
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(buf.Bytes())
}

func (h *Handler) filename(day time.Time, ext string) string {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return fmt.Sprintf("email_data_%s_%s.%s", day.Format("20060102"), now().Format("150405"), ext)
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqLog := log.With().Str("request_id", uuid.NewString()).Logger()
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))

		err := c.Next()
		reqLog.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", c.IP()).
			Msg("HTTP request")
		return err
	}
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ExtractResponse{
		Success: false,
		Error:   msg,
	})
}
