package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sitter")
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "app123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Fatalf("expected 1h session timeout, got %v", cfg.SessionTimeout)
	}
	if cfg.AirtableReadRetries != 1 {
		t.Fatalf("expected 1 read retry, got %d", cfg.AirtableReadRetries)
	}
	if cfg.AirtableCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %v", cfg.AirtableCacheTTL)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port, got %q", cfg.HTTPPort)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AIRTABLE_API_KEY", "")
	t.Setenv("AIRTABLE_BASE_ID", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing required variables")
	}
}
