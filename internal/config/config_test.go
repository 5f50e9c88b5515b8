package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not fail: %v", err)
	}
	if cfg.Transcribe.MaxFileSizeMB != 100 {
		t.Fatalf("default max file size = %d, want 100", cfg.Transcribe.MaxFileSizeMB)
	}
	if cfg.Process.ChunkSizeChars != 2000 || cfg.Process.ChunkOverlapChars != 200 {
		t.Fatalf("default chunking = %d/%d", cfg.Process.ChunkSizeChars, cfg.Process.ChunkOverlapChars)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("default attempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Cache.Disabled {
		t.Fatalf("cache must default to enabled")
	}
	if cfg.Cache.TTL() != 24*time.Hour {
		t.Fatalf("default TTL = %v", cfg.Cache.TTL())
	}
	if cfg.Retry.BaseDelay() != time.Second {
		t.Fatalf("default base delay = %v", cfg.Retry.BaseDelay())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
transcribe:
  max_file_size_mb: 25
  chunk_duration_seconds: 30
process:
  chunk_size_chars: 1000
  chunk_overlap_chars: 100
retry:
  max_attempts: 5
  base_delay_ms: 250
cache:
  disabled: true
  ttl_hours: 48
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transcribe.MaxFileSizeMB != 25 || cfg.Transcribe.ChunkDurationSeconds != 30 {
		t.Fatalf("transcribe overrides not applied: %+v", cfg.Transcribe)
	}
	if cfg.Process.ChunkSizeChars != 1000 {
		t.Fatalf("process overrides not applied: %+v", cfg.Process)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelay() != 250*time.Millisecond {
		t.Fatalf("retry overrides not applied: %+v", cfg.Retry)
	}
	if !cfg.Cache.Disabled || cfg.Cache.TTL() != 48*time.Hour {
		t.Fatalf("cache overrides not applied: %+v", cfg.Cache)
	}
	// Untouched sections keep their defaults.
	if cfg.Process.MaxTokens == 0 || cfg.Transcribe.APIBaseURL == "" {
		t.Fatalf("defaults lost for unset fields")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transcribe: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml should fail")
	}
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
process:
  chunk_size_chars: 100
  chunk_overlap_chars: 100
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("overlap >= size should be rejected")
	}
}

func TestValidateRejectsNonPositiveAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
retry:
  max_attempts: -1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("negative attempts should be rejected")
	}
}
