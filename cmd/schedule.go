package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// scheduleCmd runs the fetch and merge pipeline periodically.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run fetch and merge on a cron schedule",
	Long: `Run the pipeline on a cron schedule until interrupted:

1. sonar fetch, when the catalog file exists
2. jenkins fetch, when a projects file is configured
3. merge, when a data directory is known

A run that is still in progress when the next one is due is skipped.

Examples:
  pra schedule --cron "0 3 * * *" --projects-file projects.txt
  pra schedule --cron "@every 6h"`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteSchedule(rootCtx, cfg, storeManager)
	},
}
