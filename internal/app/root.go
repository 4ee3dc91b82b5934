package app

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagDB      string
	flagVerbose bool

	// RootCmd is the root command for debtrust
	RootCmd = &cobra.Command{
		Use:   "debtrust",
		Short: "File integrity verification for dpkg-based systems",
		Long: `debtrust cross-checks installed files against multiple independent
sources of truth and records the outcome in a persistent trust database.

For every file up to four digests are reconciled into a single verdict:
the locally computed digest, an independently reimplemented digest
(tamper detection of the hash implementation itself), the digest dpkg
recorded at install time, and a digest obtained directly from the
package archive on the distribution server.

Verdict symbols:
  +  fully verified online
  *  trusted from package metadata
  .  locally computed only
  ?  unknown / first observation
  !  mismatch, some source disagrees

Quick Start:
  1. debtrust check /usr/bin --commit     # build the initial database
  2. debtrust update --commit             # after apt upgrades
  3. debtrust check --package coreutils --online
  4. debtrust stats

Examples:
  # Verify a single file against all local sources
  debtrust check /bin/ls

  # Verify a package including its archive on the mirror
  debtrust check --package openssl --online --commit

  # Reconcile the database after package operations
  debtrust update --commit

  # Prune dead and duplicate records
  debtrust clean --commit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ~/.debtrust/config.toml)")
	RootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "trust database path (default: <state-dir>/hashdb.jsonl)")
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log diagnostics to stderr as well as the log file")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
