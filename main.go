package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/invoice-mail-extractor/internal/api"
	"github.com/insightdelivered/invoice-mail-extractor/internal/config"
	"github.com/insightdelivered/invoice-mail-extractor/internal/logger"
	"github.com/insightdelivered/invoice-mail-extractor/internal/mailbox"
	"github.com/insightdelivered/invoice-mail-extractor/internal/models"
	"github.com/insightdelivered/invoice-mail-extractor/internal/pipeline"
	"github.com/insightdelivered/invoice-mail-extractor/internal/writer"
)

const version = "1.0.0"

// passwordEnv holds the IMAP password for one-shot runs.
const passwordEnv = "INVOICE_IMAP_PASSWORD"

func main() {
	// CLI flags
	configFlag := flag.String("config", "", "Path to a JSON/YAML config file (optional)")
	dateFlag := flag.String("date", "", "Date of the invoice emails, YYYY-MM-DD")
	emailFlag := flag.String("email", "", "Mailbox login (email address)")
	serverFlag := flag.String("imap-server", "", "IMAP server host[:port] (defaults to config imap.server)")
	outputFlag := flag.String("output", "", "Output file path (defaults to email_data_<date>_<time>.<format>)")
	formatFlag := flag.String("format", "xlsx", "Output format: xlsx or csv")
	serveFlag := flag.Bool("serve", false, "Run the HTTP form/API instead of a one-shot extraction")
	addrFlag := flag.String("addr", "", "HTTP listen address for -serve (defaults to config server.address)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Invoice Mail Extractor

Scans a mailbox for invoice emails received on a given date and exports the
due amount, operator ID and expiry date of each one to a spreadsheet. When an
email states a NIL due amount, the balance is read from its PDF attachment.

Usage:
  invoice-mail-extractor -date YYYY-MM-DD -email user@example.com [flags]
  invoice-mail-extractor -serve [-addr host:port]

The IMAP password is read from the %s environment variable.

Flags:
`, passwordEnv)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Export one day's invoices to Excel
  %s=app-password invoice-mail-extractor -date 2025-03-05 -email ops@example.com

  # CSV output from a custom server
  invoice-mail-extractor -date 2025-03-05 -email ops@example.com -imap-server mail.example.com -format csv

  # Serve the upload form on port 8080
  invoice-mail-extractor -serve -addr :8080
`, passwordEnv)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("invoice-mail-extractor v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || (!*serveFlag && *dateFlag == "") {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatalf("Config error: %v\n", err)
	}
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assembler := pipeline.New(cfg.Subjects, log)

	if *serveFlag {
		addr := *addrFlag
		if addr == "" {
			addr = cfg.Server.Address
		}
		if err := serve(ctx, cfg, assembler, addr, log); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
		return
	}

	format := strings.ToLower(*formatFlag)
	if format != "xlsx" && format != "csv" {
		fatalf("Unknown format %q. Supported: xlsx, csv\n", *formatFlag)
	}
	if *emailFlag == "" {
		fatalf("-email is required\n")
	}
	password := os.Getenv(passwordEnv)
	if password == "" {
		fatalf("%s is not set\n", passwordEnv)
	}

	day, err := time.Parse("2006-01-02", *dateFlag)
	if err != nil {
		fatalf("Invalid date %q. Use YYYY-MM-DD\n", *dateFlag)
	}

	server := *serverFlag
	if server == "" {
		server = cfg.IMAP.Server
	}
	creds := mailbox.Credentials{
		Email:    *emailFlag,
		Password: password,
		Server:   server,
		Mailbox:  cfg.IMAP.Mailbox,
	}

	if err := run(ctx, assembler, creds, day, format, *outputFlag, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, assembler *pipeline.Assembler, creds mailbox.Credentials, day time.Time, format, outputPath string, log zerolog.Logger) error {
	fmt.Printf("Processing: %s on %s\n", creds.Email, day.Format(mailbox.DateLayout))
	ctx = logger.WithContext(ctx, log)

	records, err := assembler.Extract(ctx, pipeline.IMAPDialer(log), creds, day)
	if errors.Is(err, pipeline.ErrNoMatches) {
		fmt.Println("  No matching data: no invoice emails found for this date.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("  Found %d invoice(s)\n", len(records))

	outPath := outputPath
	if outPath == "" {
		outPath = fmt.Sprintf("email_data_%s_%s.%s", day.Format("20060102"), time.Now().Format("150405"), format)
	}

	switch format {
	case "csv":
		w := &writer.CSVWriter{Date: day.Format(mailbox.DateLayout)}
		err = w.WriteToFile(outPath, records)
	default:
		w := &writer.XLSXWriter{}
		err = w.WriteToFile(outPath, records)
	}
	if err != nil {
		return fmt.Errorf("%s write failed: %w", strings.ToUpper(format), err)
	}

	abs, absErr := filepath.Abs(outPath)
	if absErr != nil {
		abs = outPath
	}
	fmt.Printf("  Output: %s\n", abs)

	// Print summary
	totals := models.Summarize(records)
	fmt.Printf("  Total: %s across %d amount(s)\n", totals.Total.StringFixed(2), totals.Parsed)
	if totals.Unparsed > 0 {
		fmt.Printf("  Unresolved amounts: %d\n", totals.Unparsed)
	}

	fmt.Println("  Done.")
	return nil
}

func serve(ctx context.Context, cfg *config.Config, assembler *pipeline.Assembler, addr string, log zerolog.Logger) error {
	h := &api.Handler{
		Assembler:  assembler,
		Dial:       pipeline.IMAPDialer(log),
		IMAPServer: cfg.IMAP.Server,
		Mailbox:    cfg.IMAP.Mailbox,
		Log:        log,
	}
	app := api.NewApp(h, cfg.Server.BodyLimit)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Str("version", version).Msg("Server listening")
	return app.Listen(addr)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
