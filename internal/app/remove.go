package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	removePackage string
	removeCommit  bool

	removeCmd = &cobra.Command{
		Use:   "remove [path...]",
		Short: "Remove records from the trust database",
		Long: `Remove trust records by exact file path or by owning package.

This only forgets trust metadata; installed files are never touched.`,
		Example: `  # Forget one file
  debtrust remove /usr/local/bin/old-tool --commit

  # Forget everything a package owned
  debtrust remove --package old-package --commit`,
		RunE: runRemove,
	}
)

func init() {
	removeCmd.Flags().StringVar(&removePackage, "package", "", "remove all records owned by this package")
	removeCmd.Flags().BoolVar(&removeCommit, "commit", false, "persist the removal")

	RootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && removePackage == "" {
		return fmt.Errorf("nothing to remove: give paths or --package")
	}

	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	removed := 0
	for _, path := range args {
		if rc.db.Remove(path) {
			removed++
		} else {
			fmt.Printf("no record for %s\n", path)
		}
	}
	if removePackage != "" {
		n := rc.db.RemovePackage(removePackage)
		if n == 0 {
			fmt.Printf("no records for package %s\n", removePackage)
		}
		removed += n
	}
	fmt.Printf("removed %d record(s)\n", removed)

	if removed > 0 && removeCommit {
		return rc.commit()
	}
	if removed > 0 {
		fmt.Println("removal not persisted (re-run with --commit)")
	}
	return nil
}
