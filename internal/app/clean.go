package app

import (
	"fmt"

	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/verify"
	"github.com/spf13/cobra"
)

var (
	cleanCommit bool

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Prune dead and duplicate trust records",
		Long: `Prune records whose file no longer exists on disk and is no longer
claimed by current package metadata, plus duplicate filename keys
collapsed while loading the store. Exact counts of both are reported.`,
		Example: `  debtrust clean
  debtrust clean --commit`,
		RunE: runClean,
	}
)

func init() {
	cleanCmd.Flags().BoolVar(&cleanCommit, "commit", false, "persist the pruned database")

	RootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	metadata, err := rc.loadMetadata()
	if err != nil {
		// Without metadata every on-disk-missing record would be
		// pruned, including files from packages with unreadable info
		// files. Refuse rather than over-prune.
		return err
	}

	runner := verify.NewRunner(rc.db, metadata, nil, nil, output.NewStream(), rc.log)
	dead, duplicates := runner.Clean()

	fmt.Printf("pruned %d dead record(s), %d duplicate(s)\n", dead, duplicates)

	if cleanCommit && (dead > 0 || duplicates > 0) {
		return rc.commit()
	}
	if dead > 0 || duplicates > 0 {
		fmt.Println("pruning not persisted (re-run with --commit)")
	}
	return nil
}
