package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.CheckpointInterval != 250 {
		t.Errorf("CheckpointInterval = %d, want 250", cfg.CheckpointInterval)
	}
	if cfg.FetchTimeoutSeconds != 30 {
		t.Errorf("FetchTimeoutSeconds = %d, want 30", cfg.FetchTimeoutSeconds)
	}
	if cfg.ScanRoot != "/usr" {
		t.Errorf("ScanRoot = %q", cfg.ScanRoot)
	}
	if !cfg.SameDevice {
		t.Error("SameDevice should default on")
	}
	if cfg.DpkgAdminDir != "/var/lib/dpkg" {
		t.Errorf("DpkgAdminDir = %q", cfg.DpkgAdminDir)
	}
}

func TestRead_OverridesOnTopOfDefaults(t *testing.T) {
	input := `
state_dir = "/srv/debtrust"
checkpoint_interval = 10
watch_roots = ["/opt/bin"]
`
	cfg, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.StateDir != "/srv/debtrust" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.CheckpointInterval != 10 {
		t.Errorf("CheckpointInterval = %d", cfg.CheckpointInterval)
	}
	if len(cfg.WatchRoots) != 1 || cfg.WatchRoots[0] != "/opt/bin" {
		t.Errorf("WatchRoots = %v", cfg.WatchRoots)
	}
	// Untouched settings keep their defaults.
	if cfg.ScanRoot != "/usr" {
		t.Errorf("ScanRoot = %q, want default", cfg.ScanRoot)
	}
}

func TestRead_Malformed(t *testing.T) {
	if _, err := Read(strings.NewReader("state_dir = [broken")); err == nil {
		t.Error("malformed toml must be an error")
	}
}

func TestReadFromFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := ReadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing config file must not be an error: %v", err)
	}
	if cfg.CheckpointInterval != 250 {
		t.Errorf("CheckpointInterval = %d, want default", cfg.CheckpointInterval)
	}
}

func TestReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debtrust.toml")
	if err := os.WriteFile(path, []byte(`scan_root = "/opt"`), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile failed: %v", err)
	}
	if cfg.ScanRoot != "/opt" {
		t.Errorf("ScanRoot = %q", cfg.ScanRoot)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{StateDir: "/srv/debtrust"}
	if got := cfg.DatabasePath(); got != "/srv/debtrust/hashdb.jsonl" {
		t.Errorf("DatabasePath = %q", got)
	}
	if got := cfg.BackupPath(); got != "/srv/debtrust/hashdb.jsonl.bak" {
		t.Errorf("BackupPath = %q", got)
	}
	if got := cfg.CheckpointPath(); got != "/srv/debtrust/hashdb.checkpoint" {
		t.Errorf("CheckpointPath = %q", got)
	}

	cfg.DBPath = "/elsewhere/trust.jsonl"
	if got := cfg.DatabasePath(); got != "/elsewhere/trust.jsonl" {
		t.Errorf("DatabasePath with override = %q", got)
	}
	if got := cfg.BackupPath(); got != "/elsewhere/trust.jsonl.bak" {
		t.Errorf("BackupPath with override = %q", got)
	}
}
