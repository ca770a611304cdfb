package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/weiliu/h5client/internal/config"
	"github.com/weiliu/h5client/internal/navigation"
	"github.com/weiliu/h5client/internal/upload"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		APIBaseURL:     "http://localhost:8080",
		HTTPTimeout:    time.Second,
		SessionBackend: config.SessionBackendMemory,
		SessionFile:    filepath.Join(t.TempDir(), "session.json"),
		DetailCacheTTL: time.Minute,
		ObjectStore:    config.ObjectStoreConfig{Region: "us-east-1"},
		TrialCap:       30 * time.Second,
		HistoryWorkers: 1,
		HistoryQueue:   4,
	}
}

func build(t *testing.T, cfg config.Config) Dependencies {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, cleanup, err := buildDependencies(context.Background(), cfg, logger, &navigation.Recorder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	})
	return deps
}

func TestBuildDependencies(t *testing.T) {
	deps := build(t, baseConfig(t))

	if deps.Session == nil || deps.Session.IsLoggedIn() {
		t.Fatal("expected an empty session")
	}
	if deps.Client == nil || deps.Client.BaseURL() != "http://localhost:8080" {
		t.Fatal("expected api client to be configured")
	}
	if deps.Catalog == nil || deps.Details == nil {
		t.Fatal("expected catalog services to be configured")
	}
	if deps.Account == nil || deps.History == nil || deps.Recorder == nil || deps.Membership == nil {
		t.Fatal("expected account, history and membership services to be configured")
	}
	if _, ok := deps.Uploader.(*upload.BackendUploader); !ok {
		t.Fatalf("expected backend uploader, got %T", deps.Uploader)
	}
	if deps.Probe != nil {
		t.Fatal("probe should be disabled without a binary")
	}
}

func TestBuildDependenciesOptionalBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig(t)
	cfg.SessionBackend = config.SessionBackendFile
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.FFProbePath = "ffprobe"
	cfg.FFProbeTimeout = time.Second
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "avatars", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps := build(t, cfg)
	if _, ok := deps.Uploader.(*upload.S3Uploader); !ok {
		t.Fatalf("expected s3 uploader, got %T", deps.Uploader)
	}
	if deps.Probe == nil || deps.Probe.Binary != "ffprobe" {
		t.Fatal("expected ffprobe to be configured")
	}
}

func TestBuildDependenciesFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := map[string]func(*config.Config){
		"unknown backend": func(c *config.Config) { c.SessionBackend = "floppy" },
		"relative url":    func(c *config.Config) { c.APIBaseURL = "/api" },
		"bad redis url":   func(c *config.Config) { c.RedisURL = "not-a-url" },
		"postgres down": func(c *config.Config) {
			c.SessionBackend = config.SessionBackendPostgres
			c.DatabaseURL = "postgres://u:p@127.0.0.1:1/h5?sslmode=disable&connect_timeout=1"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig(t)
			mutate(&cfg)
			if _, _, err := buildDependencies(context.Background(), cfg, logger, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
