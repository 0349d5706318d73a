package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// statusCmd reports the on-disk state of the datasets.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archived rows and pending staging files per dataset",
	Long: `Report, for every dataset and entity, the archived row count and size,
whether a staging file is waiting to be merged, and when the archive last changed.

Examples:
  pra status
  pra status --output json --output-file status.json`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteStatus(rootCtx, cfg)
	},
}
