package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "samvad-fetch" {
		t.Fatalf("AppName = %q", cfg.AppName)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.HistoryTTL != 7*24*time.Hour {
		t.Fatalf("HistoryTTL = %s", cfg.HistoryTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HISTORY_TYPE", "none")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryType != "none" {
		t.Fatalf("HistoryType = %q", cfg.HistoryType)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}
