package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Queue.WorkerConcurrency != 4 {
		t.Errorf("expected WorkerConcurrency=4, got %d", cfg.Queue.WorkerConcurrency)
	}
	if cfg.Queue.MaxJobsPerUser != 5 {
		t.Errorf("expected MaxJobsPerUser=5, got %d", cfg.Queue.MaxJobsPerUser)
	}
	if cfg.Simulator.TickRate != 60 {
		t.Errorf("expected TickRate=60, got %d", cfg.Simulator.TickRate)
	}
	if cfg.Dedup.WindowSeconds != 10 {
		t.Errorf("expected WindowSeconds=10, got %d", cfg.Dedup.WindowSeconds)
	}
}

func TestLoad_ParsesYAMLAndExpandsEnv(t *testing.T) {
	t.Setenv("QUARRY_REDIS_URL", "redis://localhost:6379/0")

	dir := t.TempDir()
	path := filepath.Join(dir, "quarry.yaml")
	contents := `
queue:
  worker_concurrency: 8
  max_jobs_per_user: 3
redis:
  url: "${QUARRY_REDIS_URL}"
simulator:
  tick_rate: 30
retry:
  backoff_delay: "5s"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Queue.WorkerConcurrency != 8 {
		t.Errorf("expected WorkerConcurrency=8, got %d", cfg.Queue.WorkerConcurrency)
	}
	if cfg.Queue.MaxJobsPerUser != 3 {
		t.Errorf("expected MaxJobsPerUser=3, got %d", cfg.Queue.MaxJobsPerUser)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("expected expanded redis URL, got %q", cfg.Redis.URL)
	}
	if cfg.Simulator.TickRate != 30 {
		t.Errorf("expected TickRate=30, got %d", cfg.Simulator.TickRate)
	}
	if cfg.Retry.BackoffDelay.Duration != 5*time.Second {
		t.Errorf("expected BackoffDelay=5s, got %v", cfg.Retry.BackoffDelay.Duration)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quarry.yaml")
	if err := os.WriteFile(path, []byte("queue:\n  bogus_field: 1\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown field")
	}
}
