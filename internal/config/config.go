// Package config loads the debtrust configuration file. Every setting
// has a usable default; flags override config values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds run-wide settings.
type Config struct {
	// StateDir holds the trust database, its backup, checkpoints and
	// the run log. Default ~/.debtrust.
	StateDir string `toml:"state_dir"`

	// DBPath overrides the trust database location.
	DBPath string `toml:"db_path,omitempty"`

	// CheckpointInterval is the number of accumulated changes after
	// which a mid-run snapshot is written. Zero disables checkpointing.
	CheckpointInterval int `toml:"checkpoint_interval"`

	// FetchTimeoutSeconds bounds every online retrieval.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`

	// ScanRoot is the default directory for whole-system checks.
	ScanRoot string `toml:"scan_root"`

	// SameDevice restricts directory scans to the root's device.
	SameDevice bool `toml:"same_device"`

	// WatchRoots are the directories the watch daemon monitors.
	WatchRoots []string `toml:"watch_roots"`

	// DpkgAdminDir is the dpkg database directory.
	DpkgAdminDir string `toml:"dpkg_admin_dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	stateDir := "/var/lib/debtrust"
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, ".debtrust")
	}
	return &Config{
		StateDir:            stateDir,
		CheckpointInterval:  250,
		FetchTimeoutSeconds: 30,
		ScanRoot:            "/usr",
		SameDevice:          true,
		WatchRoots:          []string{"/usr/bin", "/usr/sbin", "/usr/lib"},
		DpkgAdminDir:        "/var/lib/dpkg",
	}
}

// Read decodes a Config from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ReadFromFile loads path. A missing file is not an error; the
// defaults apply.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// DatabasePath returns the effective trust database location.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.StateDir, "hashdb.jsonl")
}

// BackupPath returns the location of the pre-write backup copy.
func (c *Config) BackupPath() string {
	return c.DatabasePath() + ".bak"
}

// CheckpointPath returns the location of the mid-run snapshot.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.StateDir, "hashdb.checkpoint")
}

// HistoryPath returns the run-history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.db")
}

// LogPath returns the run log location.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, "debtrust.log")
}
