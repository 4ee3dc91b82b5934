package app

import (
	"fmt"

	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/spf13/cobra"
)

var (
	listPackage string
	listDetail  bool

	listCmd = &cobra.Command{
		Use:   "list [pattern]",
		Short: "List trust records by file or package",
		Long: `Query the trust database without touching the filesystem.

A positional pattern matches filenames; --package matches package
names. Both accept a trailing '*' wildcard for prefix matching.
--detail prints every stored digest for each matching record.`,
		Example: `  # One file
  debtrust list /bin/ls

  # Everything under /usr/bin
  debtrust list '/usr/bin/*'

  # All records of packages starting with "lib"
  debtrust list --package 'lib*'

  # Full digest detail
  debtrust list --detail /bin/ls`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().StringVar(&listPackage, "package", "", "match by package name instead of filename")
	listCmd.Flags().BoolVar(&listDetail, "detail", false, "print all stored digests per record")

	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && listPackage == "" {
		return fmt.Errorf("nothing to list: give a filename pattern or --package")
	}

	rc, err := openRun()
	if err != nil {
		return err
	}
	defer rc.close()

	records := rc.db.MatchPackages(listPackage)
	if listPackage == "" {
		records = rc.db.MatchFiles(args[0])
	}

	if listDetail {
		for i, rec := range records {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(output.RenderRecordDetail(rec))
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
		}
		return nil
	}
	fmt.Print(output.RenderRecordTable(records))
	return nil
}
