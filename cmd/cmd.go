// Package cmd defines the command-line interface for pra.
package cmd

import (
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(sonarCmd)
	rootCmd.AddCommand(jenkinsCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the source subcommands to their parent commands
	sonarCmd.AddCommand(sonarFetchCmd)
	sonarCmd.AddCommand(sonarCatalogCmd)
	jenkinsCmd.AddCommand(jenkinsFetchCmd)

	// Add the ledger subcommands to the parent ledger command
	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerRunsCmd)
	ledgerCmd.AddCommand(ledgerClearCmd)
	ledgerCmd.AddCommand(ledgerExportCmd)
	ledgerCmd.AddCommand(ledgerMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Root of the staging and archive datasets (default $PRA_HOME/data)")
	rootCmd.PersistentFlags().String("layout", "", "Optional YAML file overriding the dataset layout")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Report format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("ledger-backend", string(schema.SQLiteBackend), "Run ledger backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("ledger-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus run metrics to this textfile")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("timeout", contract.DefaultRequestTimeout.String(), "Per-request upstream timeout")
	rootCmd.PersistentFlags().Int("retries", contract.DefaultMaxRetries, "Upstream retries for transient failures")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Flags shared by the sonar subcommands
	sonarCmd.PersistentFlags().String("server", contract.DefaultSonarServer, "SonarQube server URL")
	sonarCmd.PersistentFlags().String("organization", contract.DefaultSonarOrganization, "SonarQube organization")
	sonarCmd.PersistentFlags().String("catalog", contract.DefaultCatalogPath, "Metric catalog file")
	bindFlags(sonarCmd.PersistentFlags(), map[string]string{
		"sonar-server": "server",
		"organization": "organization",
		"catalog":      "catalog",
	})

	// Bind all flags of sonarFetchCmd to Viper
	sonarFetchCmd.Flags().String("format", string(schema.CSVOut), "Staging format: csv or parquet")
	sonarFetchCmd.Flags().String("output-dir", "", "Staging output directory (default <data-dir>/sonar_data)")
	sonarFetchCmd.Flags().String("load", string(schema.IncrementalLoad), "Load mode: first or incremental")
	bindFlags(sonarFetchCmd.Flags(), map[string]string{
		"format":           "format",
		"sonar-output-dir": "output-dir",
		"load":             "load",
	})

	// Flags shared by the jenkins subcommands
	jenkinsCmd.PersistentFlags().String("server", contract.DefaultJenkinsServer, "Jenkins server URL")
	jenkinsCmd.PersistentFlags().String("user", "", "Jenkins user for basic auth (token via PRA_JENKINS_TOKEN)")
	bindFlags(jenkinsCmd.PersistentFlags(), map[string]string{
		"jenkins-server": "server",
		"jenkins-user":   "user",
	})

	// Bind all flags of jenkinsFetchCmd to Viper
	jenkinsFetchCmd.Flags().String("output-dir", "", "Staging output directory (default <data-dir>/jenkins_data)")
	bindFlags(jenkinsFetchCmd.Flags(), map[string]string{
		"jenkins-output-dir": "output-dir",
	})

	// Bind all flags of mergeCmd to Viper
	mergeCmd.Flags().String("dedup-key", "", "Comma-separated columns identifying a row (default: the full row)")
	if err := viper.BindPFlags(mergeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding merge flags", err)
	}

	// Bind all flags of scheduleCmd to Viper
	scheduleCmd.Flags().String("cron", "", "Cron spec of the pipeline (e.g. '0 3 * * *' or '@daily')")
	scheduleCmd.Flags().String("projects-file", "", "Jenkins projects file; enables the jenkins fetch step")
	if err := viper.BindPFlags(scheduleCmd.Flags()); err != nil {
		contract.LogFatal("Error binding schedule flags", err)
	}

	// Flags read directly by their commands
	ledgerRunsCmd.Flags().Int("limit", 20, "Number of runs to display (0 = all)")
	ledgerMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
}

// bindFlags binds flags to config keys that differ from the flag names.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			contract.LogFatal("Error binding flag "+name, err)
		}
	}
}
