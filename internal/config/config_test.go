package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("H5_API_BASE_URL", "")
	t.Setenv("H5_TRIAL_CAP", "")
	t.Setenv("H5_SESSION_BACKEND", "")
	t.Setenv("H5_MIGRATION_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://www.weiliuyinshi.cn:8080" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.TrialCap != 30*time.Second {
		t.Fatalf("expected 30s trial cap got %v", cfg.TrialCap)
	}
	if cfg.SessionBackend != SessionBackendFile {
		t.Fatalf("expected file backend got %q", cfg.SessionBackend)
	}
	if cfg.SessionFile == "" {
		t.Fatal("expected default session file path")
	}
	if cfg.ObjectStore.Enabled() {
		t.Fatal("object store should be disabled without a bucket")
	}
	if cfg.MigrationDir != "migrations" {
		t.Fatalf("unexpected migration dir %q", cfg.MigrationDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("H5_API_BASE_URL", "http://localhost:9999")
	t.Setenv("H5_HTTP_TIMEOUT", "2s")
	t.Setenv("H5_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("H5_HISTORY_WORKERS", "3")
	t.Setenv("H5_UPLOAD_BUCKET", "avatars")
	t.Setenv("H5_TRIAL_CAP", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9999" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.HTTPTimeout)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Fatalf("unexpected rate %v", cfg.RequestsPerSecond)
	}
	if cfg.HistoryWorkers != 3 {
		t.Fatalf("unexpected workers %d", cfg.HistoryWorkers)
	}
	if !cfg.ObjectStore.Enabled() {
		t.Fatal("expected object store enabled")
	}
	if cfg.TrialCap != 45*time.Second {
		t.Fatalf("unexpected trial cap %v", cfg.TrialCap)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("H5_HTTP_TIMEOUT", "soon")
	t.Setenv("H5_REQUEST_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout got %v", cfg.HTTPTimeout)
	}
	if cfg.RequestBurst != 5 {
		t.Fatalf("expected fallback burst got %d", cfg.RequestBurst)
	}
}
