package dispatcher

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("dispatcher", flag.ContinueOnError)
	t.Setenv("ASSURVIE_DISPATCHER_PORT", "9190")
	t.Setenv("ASSURVIE_DISPATCHER_SMTP_ADDR", "relay:2525")

	cfg, err := ParseConfig(fs, []string{"-batch-size", "10", "-stale-after", "90s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9190 {
		t.Fatalf("port = %d, want 9190", cfg.Port)
	}
	if cfg.SMTPAddr != "relay:2525" {
		t.Fatalf("smtp addr = %q, want %q", cfg.SMTPAddr, "relay:2525")
	}
	if cfg.BatchSize != 10 {
		t.Fatalf("batch size = %d, want 10", cfg.BatchSize)
	}
	if cfg.StaleAfter != 90*time.Second {
		t.Fatalf("stale after = %v, want 90s", cfg.StaleAfter)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("dispatcher", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("port = %d, want 8090", cfg.Port)
	}
	if cfg.DBPath != "data/clients.db" {
		t.Fatalf("db path = %q, want data/clients.db", cfg.DBPath)
	}
	if cfg.DefaultLocale != "fr" {
		t.Fatalf("locale = %q, want fr", cfg.DefaultLocale)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %v, want 30s", cfg.PollInterval)
	}
}
