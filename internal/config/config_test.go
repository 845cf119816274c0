package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.IMAP.Server != "imap.gmail.com" {
		t.Errorf("imap server: got %q", cfg.IMAP.Server)
	}
	if cfg.IMAP.Mailbox != "INBOX" {
		t.Errorf("mailbox: got %q", cfg.IMAP.Mailbox)
	}
	if cfg.Server.BodyLimit != 50*1024*1024 {
		t.Errorf("body limit: got %d", cfg.Server.BodyLimit)
	}
	if len(cfg.Subjects) != 2 {
		t.Errorf("expected 2 default subjects, got %v", cfg.Subjects)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INVOICE_IMAP_SERVER", "imap.example.com:1993")
	t.Setenv("INVOICE_SUBJECTS", "Invoice for CNMS ON-Net, Billing Statement")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.IMAP.Server != "imap.example.com:1993" {
		t.Errorf("imap server: got %q", cfg.IMAP.Server)
	}
	want := []string{"Invoice for CNMS ON-Net", "Billing Statement"}
	if len(cfg.Subjects) != len(want) {
		t.Fatalf("subjects: got %v, want %v", cfg.Subjects, want)
	}
	for i := range want {
		if cfg.Subjects[i] != want[i] {
			t.Errorf("subject %d: got %q, want %q", i, cfg.Subjects[i], want[i])
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "server": {"address": "127.0.0.1:8080"},
  "subjects": ["Rental Invoice"],
  "log": {"level": "debug"}
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != "127.0.0.1:8080" {
		t.Errorf("address: got %q", cfg.Server.Address)
	}
	if len(cfg.Subjects) != 1 || cfg.Subjects[0] != "Rental Invoice" {
		t.Errorf("subjects: got %v", cfg.Subjects)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %q", cfg.Log.Level)
	}
	if cfg.IMAP.Server != "imap.gmail.com" {
		t.Errorf("unset keys keep defaults, got imap server %q", cfg.IMAP.Server)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}
