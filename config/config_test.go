package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackfillLimitClamp(t *testing.T) {
	t.Setenv("BACKFILL_LIMIT", "200")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BackfillLimit != maxBackfillLimit {
		t.Fatalf("expected backfill limit %d, got %d", maxBackfillLimit, cfg.BackfillLimit)
	}
}

func TestQueueSizeDefaultsRespectWorkers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d", cfg.JobQueueSize)
	}
}

func TestHTTPPortDefaultFormatting(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
}

func TestFetchEnabledNeedsURLAndToken(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.org/v1/")
	t.Setenv("API_TOKEN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FetchEnabled {
		t.Fatal("fetch must stay disabled without a token")
	}
	if cfg.APIBaseURL != "https://api.example.org/v1" {
		t.Fatalf("base url not trimmed: %q", cfg.APIBaseURL)
	}

	t.Setenv("API_TOKEN", "secret")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.FetchEnabled {
		t.Fatal("fetch should be enabled with url and token")
	}
}

func TestFileConfigWithFidelityOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
extracts_dir: /data/extracts
fidelity:
  reference_month: "2023-06"
  default_expected_houses: 250
  vht_per_district: 12
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ExtractsDir != "/data/extracts" {
		t.Fatalf("extracts dir = %q", cfg.ExtractsDir)
	}
	if cfg.Fidelity.ReferenceMonth != "2023-06" {
		t.Fatalf("reference month = %q", cfg.Fidelity.ReferenceMonth)
	}
	if cfg.Fidelity.DefaultExpectedHouses != 250 || cfg.Fidelity.VhtPerDistrict != 12 {
		t.Fatalf("fidelity = %+v", cfg.Fidelity)
	}
}

func TestStrictConfigRejectsBadReferenceMonth(t *testing.T) {
	t.Setenv("STRICT_CONFIG", "true")
	t.Setenv("FIDELITY_REFERENCE_MONTH", "June 2023")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for malformed reference month")
	}
}
