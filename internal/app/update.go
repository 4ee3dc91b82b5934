package app

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/debtrust/internal/aptindex"
	"github.com/blackwell-systems/debtrust/internal/online"
	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/reconcile"
	"github.com/blackwell-systems/debtrust/internal/verify"
	"github.com/spf13/cobra"
)

var (
	updateOnline bool
	updateCommit bool

	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Reconcile the trust database with current package metadata",
		Long: `Diff the stored trust database against the package system's current
metadata and re-verify exactly what changed, instead of rescanning the
whole filesystem.

Files added by package operations are verified and inserted; records
whose file and metadata entry are both gone are removed; files whose
recorded digest changed (package upgrades) are re-verified. Packages
whose source URI moved are re-verified too, and packages that vanished
from the configured sources are reported.

Run this after apt install/upgrade/remove operations.`,
		Example: `  # Reconcile and persist
  debtrust update --commit

  # Reconcile and verify changed files against their archives
  debtrust update --online --commit`,
		RunE: runUpdate,
	}
)

func init() {
	updateCmd.Flags().BoolVar(&updateOnline, "online", false, "verify changed files against their source archives")
	updateCmd.Flags().BoolVar(&updateCommit, "commit", false, "persist results to the trust database")

	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	metadata, err := rc.loadMetadata()
	if err != nil {
		// Reconciliation without current metadata would classify
		// everything as removed; unlike check, this must stop.
		return err
	}

	resolver := aptindex.NewAptProvider(rc.log)
	diff := reconcile.Diff(rc.db, metadata, resolver, rc.log)

	fmt.Printf("reconciliation: %d added, %d removed, %d changed, %d uri-changed package(s), %d disappeared package(s)\n",
		len(diff.Added), len(diff.Removed), len(diff.Changed), len(diff.URIChanged), len(diff.Disappeared))
	for _, pkg := range diff.Disappeared {
		fmt.Printf("  package %s no longer has a configured source\n", pkg)
	}

	stream := output.NewStream()
	verifier := online.New(time.Duration(rc.cfg.FetchTimeoutSeconds)*time.Second, rc.log)
	runner := verify.NewRunner(rc.db, metadata, resolver, verifier, stream, rc.log)
	runner.CheckpointEvery = rc.cfg.CheckpointInterval
	runner.CheckpointPath = rc.cfg.CheckpointPath()

	runner.ApplyReconciliation(diff, verify.Options{Online: updateOnline})
	stream.Finish()

	sum := runner.Summary()
	printSummary(sum)

	if updateCommit {
		if err := rc.commit(); err != nil {
			return err
		}
	} else if sum.Changed > 0 {
		fmt.Println("results not persisted (re-run with --commit)")
	}
	rc.recordHistory("update", sum, updateCommit)
	return nil
}
