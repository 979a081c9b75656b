package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.DefaultShell != "virtual" {
		t.Errorf("DefaultShell = %q", cfg.DefaultShell)
	}
	if cfg.WorkflowDir != "workflows" {
		t.Errorf("WorkflowDir = %q", cfg.WorkflowDir)
	}
	if cfg.Artifact.Enabled() {
		t.Error("artifact upload enabled without an endpoint")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	data := `
data_dir: /var/lib/matrixci
listen: ":9090"
webhook_secret: topsecret
max_parallel: 2
keep_workspace: true
artifact:
  endpoint: minio.local:9000
  bucket: ci-artifacts
  access_key: ak
  secret_key: sk
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/matrixci" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.WebhookSecret != "topsecret" {
		t.Errorf("WebhookSecret = %q", cfg.WebhookSecret)
	}
	if cfg.MaxParallel != 2 || !cfg.KeepWorkspace {
		t.Errorf("MaxParallel = %d, KeepWorkspace = %v", cfg.MaxParallel, cfg.KeepWorkspace)
	}
	if !cfg.Artifact.Enabled() {
		t.Fatal("artifact upload not enabled")
	}
	sc := cfg.Artifact.StoreConfig()
	if sc.Endpoint != "minio.local:9000" || sc.Bucket != "ci-artifacts" {
		t.Errorf("store config = %+v", sc)
	}
	if sc.Region != "us-east-1" {
		t.Errorf("Region = %q, want default", sc.Region)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MATRIXCI_LISTEN", ":7070")
	t.Setenv("MATRIXCI_WEBHOOK_SECRET", "fromenv")
	t.Setenv("MATRIXCI_ARTIFACT_ENDPOINT", "minio.local:9000")
	t.Setenv("MATRIXCI_ARTIFACT_BUCKET", "ci-artifacts")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q, want env override", cfg.Listen)
	}
	if cfg.WebhookSecret != "fromenv" {
		t.Errorf("WebhookSecret = %q, want env override", cfg.WebhookSecret)
	}
	if !cfg.Artifact.Enabled() || cfg.Artifact.Endpoint != "minio.local:9000" {
		t.Errorf("Artifact.Endpoint = %q, want env override", cfg.Artifact.Endpoint)
	}
	if cfg.Artifact.Bucket != "ci-artifacts" {
		t.Errorf("Artifact.Bucket = %q, want env override", cfg.Artifact.Bucket)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.LedgerPath(); got != filepath.Join("/data", "ledger.jsonl") {
		t.Errorf("LedgerPath = %q", got)
	}
	pub, priv := cfg.KeyPaths()
	if pub != filepath.Join("/data", "keys", "runner.pub") || priv != filepath.Join("/data", "keys", "runner.priv") {
		t.Errorf("KeyPaths = %q, %q", pub, priv)
	}
}
