// Package config loads runtime settings from defaults, an optional config
// file and INVOICE_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every runtime setting. It is passed explicitly to the
// components that need it.
type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	IMAP     IMAPConfig   `mapstructure:"imap"`
	Subjects []string     `mapstructure:"subjects"`
	Log      LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Address   string `mapstructure:"address"`
	BodyLimit int    `mapstructure:"body_limit"`
}

type IMAPConfig struct {
	Server  string `mapstructure:"server"`
	Mailbox string `mapstructure:"mailbox"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EnvPrefix is prepended to environment overrides, e.g. INVOICE_IMAP_SERVER.
const EnvPrefix = "INVOICE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0:5000")
	v.SetDefault("server.body_limit", 50*1024*1024)
	v.SetDefault("imap.server", "imap.gmail.com")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("subjects", []string{
		"Invoice for R-Soft-SMS: Rental for the Month",
		"Invoice for CNMS ON-Net",
	})
	v.SetDefault("log.level", "info")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Subjects = splitList(cfg.Subjects)
	return &cfg, nil
}

// splitList flattens comma-separated entries, as an environment override
// arrives as a single string.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
