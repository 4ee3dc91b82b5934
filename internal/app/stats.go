package app

import (
	"errors"
	"fmt"

	"github.com/blackwell-systems/debtrust/internal/history"
	"github.com/blackwell-systems/debtrust/internal/trust"
	"github.com/spf13/cobra"
)

var (
	statsRuns int

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show trust database statistics and run history",
		Long: `Display the verdict breakdown of the current trust database and the
most recent verification runs.`,
		Example: `  debtrust stats
  debtrust stats --runs 20`,
		RunE: runStats,
	}
)

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 10, "number of recent runs to show")

	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsRuns <= 0 {
		return fmt.Errorf("invalid runs: %d (must be positive)", statsRuns)
	}

	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	var counts [5]int
	packages := make(map[string]bool)
	for _, rec := range rc.db.All() {
		level, _ := trust.Evaluate(rec, false)
		counts[level]++
		if rec.Package != "" {
			packages[rec.Package] = true
		}
	}
	fmt.Printf("records: %d across %d package(s)\n", rc.db.Len(), len(packages))
	fmt.Printf("  %s fully verified:    %d\n", trust.Symbol(trust.Verified), counts[trust.Verified])
	fmt.Printf("  %s metadata trusted:  %d\n", trust.Symbol(trust.Recorded), counts[trust.Recorded])
	fmt.Printf("  %s local only:        %d\n", trust.Symbol(trust.Local), counts[trust.Local])
	fmt.Printf("  %s unknown:           %d\n", trust.Symbol(trust.Unknown), counts[trust.Unknown])
	fmt.Printf("  %s mismatched:        %d\n", trust.Symbol(trust.Mismatch), counts[trust.Mismatch])

	st, err := history.New(rc.cfg.HistoryPath())
	if err != nil {
		rc.log.Warn("history unavailable", "error", err)
		return nil
	}
	defer st.Close()

	runs, err := st.ListRuns(statsRuns)
	if err != nil {
		if errors.Is(err, history.ErrNotInitialized) {
			fmt.Println("\nno run history yet")
			return nil
		}
		return err
	}
	checked, changed, err := st.Totals()
	if err != nil && !errors.Is(err, history.ErrNotInitialized) {
		return err
	}

	fmt.Printf("\nlifetime: %d file(s) checked, %d change(s) committed\n", checked, changed)
	if len(runs) > 0 {
		fmt.Printf("\n%-20s %-8s %8s %8s %6s %6s\n", "Started", "Command", "Checked", "Changed", "Bad", "Saved")
		for _, run := range runs {
			saved := "no"
			if run.Committed {
				saved = "yes"
			}
			fmt.Printf("%-20s %-8s %8d %8d %6d %6s\n",
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Command, run.Checked, run.Changed, run.Verdicts[0], saved)
		}
	}
	return nil
}
