package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// sonarCmd groups the SonarQube commands.
var sonarCmd = &cobra.Command{
	Use:   "sonar",
	Short: "Collect quality measures from SonarQube",
	Long: `Collect per-project quality measures from a SonarQube server.

Subcommands:
  fetch   - Write one measures staging table per project
  catalog - Write the metric catalog from the server's metric definitions

Examples:
  # Refresh the catalog, then fetch every project of an organization
  pra sonar catalog --catalog all_metrics.txt
  pra sonar fetch --organization apache --format parquet`,
}

// sonarFetchCmd writes measures staging tables.
var sonarFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Write a measures staging table per project",
	Long: `Fetch the analyses and measure histories of every project in the organization.

Each project produces <output-dir>/<format>/<project>_staging.<format> with one
row per analysis date and one column per catalog metric. Projects without
analyses are skipped. A failing project is reported and does not stop the others.

Examples:
  # Fetch into $PRA_HOME/data/sonar_data/csv
  pra sonar fetch

  # Fetch parquet tables into a custom directory
  pra sonar fetch --format parquet --output-dir /tmp/sonar`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteSonarFetch(rootCtx, cfg, storeManager)
	},
}

// sonarCatalogCmd writes the metric catalog.
var sonarCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Write the metric catalog from upstream metric definitions",
	Long: `Download every metric definition of the server and write the catalog file.

Each line reads "<id> - <domain> - <key> - <type> - <description>".`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteSonarCatalog(rootCtx, cfg)
	},
}
