package app

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/debtrust/internal/aptindex"
	"github.com/blackwell-systems/debtrust/internal/online"
	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/verify"
	"github.com/spf13/cobra"
)

var (
	verifyFull   bool
	verifyCommit bool

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Re-check every stored record against its source archive",
		Long: `Bulk online re-verification: every record with a known owning package
is checked against the package archive on the distribution server.

By default only the recorded digests are fetched (two small ranged
requests per distinct package). With --full each package is downloaded
completely and the digests are recomputed from its content. Each
distinct source URI is fetched at most once.`,
		Example: `  # Cheap: recorded digests from each archive's control member
  debtrust verify --commit

  # Ground truth: full downloads
  debtrust verify --full --commit`,
		RunE: runVerify,
	}
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyFull, "full", false, "download packages completely instead of fetching metadata")
	verifyCmd.Flags().BoolVar(&verifyCommit, "commit", false, "persist results to the trust database")

	RootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	metadata, err := rc.loadMetadata()
	if err != nil {
		rc.log.Warn("continuing without dpkg metadata", "error", err)
	}

	stream := output.NewStream()
	verifier := online.New(time.Duration(rc.cfg.FetchTimeoutSeconds)*time.Second, rc.log)
	runner := verify.NewRunner(rc.db, metadata, aptindex.NewAptProvider(rc.log), verifier, stream, rc.log)
	runner.CheckpointEvery = rc.cfg.CheckpointInterval
	runner.CheckpointPath = rc.cfg.CheckpointPath()

	runner.VerifyOnline(verifyFull, verify.Options{})
	stream.Finish()

	sum := runner.Summary()
	printSummary(sum)

	if verifyCommit {
		if err := rc.commit(); err != nil {
			return err
		}
	} else if sum.Changed > 0 {
		fmt.Println("results not persisted (re-run with --commit)")
	}
	rc.recordHistory("verify", sum, verifyCommit)
	return nil
}
