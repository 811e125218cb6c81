package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Session.SessionTimeout != 30*time.Minute {
		t.Errorf("expected default session timeout 30m, got %v", cfg.Session.SessionTimeout)
	}
	if cfg.Edge.TTL != 5*time.Minute {
		t.Errorf("expected default edge TTL 5m, got %v", cfg.Edge.TTL)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("expected default backend local, got %s", cfg.Storage.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"100MB", 100 * 1024 * 1024, false},
		{"2GB", 2 * 1024 * 1024 * 1024, false},
		{"512KB", 512 * 1024, false},
		{"1TB", 1 << 40, false},
		{"250B", 250, false},
		{"250", 250, false},
		{"1.5MB", 1572864, false},
		{" 64 MB ", 64 * 1024 * 1024, false},
		{"10mb", 10 * 1024 * 1024, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
listen_addr: ":9000"
session:
  enabled: true
  directory: /var/cache/render
  quota: 250MB
  session_timeout: 1h
  cleanup_interval: 10m
edge:
  max_size: 64MB
  ttl: 2m
  size_threshold: 1MB
storage:
  backend: s3
  s3:
    bucket: render-artifacts
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen addr :9000, got %s", cfg.ListenAddr)
	}
	if cfg.Session.Quota != "250MB" {
		t.Errorf("expected quota 250MB, got %s", cfg.Session.Quota)
	}
	if cfg.Session.SessionTimeout != time.Hour {
		t.Errorf("expected session timeout 1h, got %v", cfg.Session.SessionTimeout)
	}
	if cfg.Storage.Backend != "s3" {
		t.Errorf("expected backend s3, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.S3.Bucket != "render-artifacts" {
		t.Errorf("expected bucket render-artifacts, got %s", cfg.Storage.S3.Bucket)
	}
	// Untouched sections keep defaults.
	if cfg.Metrics.Port != 8091 {
		t.Errorf("expected default metrics port, got %d", cfg.Metrics.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got %v", err)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RENDERCACHE_LISTEN_ADDR", ":7777")
	t.Setenv("RENDERCACHE_SESSION_QUOTA", "10MB")
	t.Setenv("RENDERCACHE_EDGE_TTL", "90s")
	t.Setenv("RENDERCACHE_STORAGE_BACKEND", "s3")
	t.Setenv("RENDERCACHE_S3_BUCKET", "env-bucket")
	t.Setenv("RENDERCACHE_LOG_LEVEL", "DEBUG")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.ListenAddr != ":7777" {
		t.Errorf("expected :7777, got %s", cfg.ListenAddr)
	}
	if cfg.Session.Quota != "10MB" {
		t.Errorf("expected 10MB, got %s", cfg.Session.Quota)
	}
	if cfg.Edge.TTL != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.Edge.TTL)
	}
	if cfg.Storage.S3.Bucket != "env-bucket" {
		t.Errorf("expected env-bucket, got %s", cfg.Storage.S3.Bucket)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", cfg.Logging.Level)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"empty listen addr", func(c *Configuration) { c.ListenAddr = "" }},
		{"bad quota", func(c *Configuration) { c.Session.Quota = "lots" }},
		{"zero session timeout", func(c *Configuration) { c.Session.SessionTimeout = 0 }},
		{"bad edge max size", func(c *Configuration) { c.Edge.MaxSize = "" }},
		{"zero edge ttl", func(c *Configuration) { c.Edge.TTL = 0 }},
		{"unknown backend", func(c *Configuration) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Configuration) {
			c.Storage.Backend = "s3"
			c.Storage.S3.Bucket = ""
		}},
		{"bad log level", func(c *Configuration) { c.Logging.Level = "LOUD" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.yaml")

	cfg := NewDefault()
	cfg.ListenAddr = ":6060"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.ListenAddr != ":6060" {
		t.Errorf("round trip lost listen addr, got %s", loaded.ListenAddr)
	}
}
