package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// ledgerCmd focused on run ledger management.
//
// Note: clear and migrate only validate configuration and open their own
// connections; the other subcommands open the ledger like the fetch commands.
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage the run ledger of fetch and merge runs",
	Long: `Manage the run ledger that records every fetch and merge run.

For each run the ledger stores:
- Run metadata (command, parameters, start and end time, final status)
- One outcome per entity (action, rows in and out, error)

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show ledger statistics and connection info
  runs    - List the most recent runs
  export  - Export runs and outcomes to Parquet
  clear   - Remove all ledger data
  migrate - Run database schema migrations

Examples:
  # Check ledger status
  pra ledger status

  # Export for analysis in pandas/DuckDB
  pra ledger export --output-file ledger`,
}

// ledgerStatusCmd shows ledger status.
var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display ledger statistics and connection details",
	Long: `Show the backend, total runs, last and oldest run, failed entity count and
table sizes of the run ledger.`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteLedgerStatus(rootCtx, cfg, storeManager)
	},
}

// ledgerRunsCmd lists recent runs.
var ledgerRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the most recent runs",
	Long: `List recorded runs, newest first, with their duration, status and entity counters.

Examples:
  pra ledger runs --limit 5
  pra ledger runs --output csv --output-file runs.csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		return core.ExecuteLedgerRuns(rootCtx, cfg, storeManager, limit)
	},
}

// ledgerExportCmd exports ledger data to Parquet files.
var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs and entity outcomes to Parquet files",
	Long: `Write <output-file>.runs.parquet and <output-file>.outcomes.parquet.

Examples:
  pra ledger export --output-file backup`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteLedgerExport(rootCtx, cfg, storeManager)
	},
}

// ledgerClearCmd clears the ledger.
var ledgerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all run ledger data",
	Long: `Delete all recorded runs and entity outcomes.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the ledger tables

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  pra ledger export --output-file backup
  pra ledger clear`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteLedgerClear(rootCtx, cfg)
	},
}

// ledgerMigrateCmd runs schema migrations.
var ledgerMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run ledger database schema migrations",
	Long: `Apply the embedded schema migrations of the configured backend.

Examples:
  # Migrate to the latest version
  pra ledger migrate

  # Roll back everything
  pra ledger migrate --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, err := cmd.Flags().GetInt("target-version")
		if err != nil {
			return err
		}
		return core.ExecuteLedgerMigrate(rootCtx, cfg, target)
	},
}
