package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "openattest.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("server address = %s, want :8080", cfg.Server.Address)
	}
	if cfg.Auth.Mode != "disabled" {
		t.Fatalf("auth mode = %s, want disabled", cfg.Auth.Mode)
	}
	if cfg.Registry.Store.Driver != "memory" || cfg.JobStore.Driver != "memory" || cfg.JobQueue.Driver != "memory" {
		t.Fatalf("unexpected drivers: %+v", cfg)
	}
	if cfg.JobStore.Retries != 3 {
		t.Fatalf("retries = %d, want 3", cfg.JobStore.Retries)
	}
	if cfg.JobQueue.Worker != 4 {
		t.Fatalf("worker = %d, want 4", cfg.JobQueue.Worker)
	}
	if cfg.Metrics.Address != "" {
		t.Fatalf("metrics address should stay empty when metrics disabled")
	}
}

func TestLoadResolvesWitnessFileRelativeToConfig(t *testing.T) {
	path := writeConfig(t, `{
        "metrics": {"enabled": true},
        "registry": {"witness_file": "witnesses.yaml"},
        "job_queue": {"driver": "redis", "worker": 8},
        "verification": {"fields": [{"name": "kyc_status", "marker": "\"KYC_status\":\""}]}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "witnesses.yaml")
	if cfg.Registry.WitnessFile != want {
		t.Fatalf("witness file = %s, want %s", cfg.Registry.WitnessFile, want)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Fatalf("metrics address = %s, want :9090", cfg.Metrics.Address)
	}
	if cfg.JobQueue.Driver != "redis" || cfg.JobQueue.Worker != 8 {
		t.Fatalf("unexpected queue config: %+v", cfg.JobQueue)
	}
	if len(cfg.Verification.Fields) != 1 || cfg.Verification.Fields[0].Marker != `"KYC_status":"` {
		t.Fatalf("unexpected verification fields: %+v", cfg.Verification.Fields)
	}
}

func TestLoadRejectsMissingOrBrokenFile(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("empty path must fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file must fail")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Fatalf("malformed JSON must fail")
	}
}
