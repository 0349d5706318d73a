package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// mergeCmd folds staging tables into the archives.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge staging tables into the cumulative archives",
	Long: `Walk every dataset directory and merge each <entity>_staging.csv into
<entity>.csv.

- A missing archive is bootstrapped from the staging file.
- Otherwise staging rows are placed first, followed by archive rows, and
  duplicates are dropped keeping the first occurrence.
- The staging file is removed after a successful merge.

Rows are compared by typed value, so "1" and "1.0" in a numeric column are equal.

Examples:
  # Merge everything under $PRA_HOME/data
  pra merge

  # Treat rows with the same job and build number as duplicates
  pra merge --data-dir ./data --dedup-key job,build_number`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteMerge(rootCtx, cfg, storeManager)
	},
}
