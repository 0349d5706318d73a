package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations. Execute replaces it with a
// context that is canceled on SIGINT or SIGTERM.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// storeManager is the global run ledger manager instance.
var storeManager contract.StoreManager = ledger.Manager

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "pra",
	Short: "Archive code-quality and CI telemetry into cumulative datasets.",
	Long: `PRA pulls per-project quality measures from SonarQube and per-job build and
test history from Jenkins, writes them as staging tables, and merges them into
deduplicated archive tables for downstream analysis.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("PRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("format", schema.CSVOut)
	viper.SetDefault("load", schema.IncrementalLoad)
	viper.SetDefault("retries", contract.DefaultMaxRetries)
	viper.SetDefault("timeout", contract.DefaultRequestTimeout.String())
	viper.SetDefault("ledger-backend", schema.SQLiteBackend)
	viper.SetDefault("ledger-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", "info")
}

// setConfigFile points viper at --config or the default .pra.yaml locations.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".pra")  // Name of config file (without extension)
	viper.SetConfigType("yaml")  // We'll use YAML format
	viper.AddConfigPath(".")     // Look in the current directory
	viper.AddConfigPath("$HOME") // Look in the home directory
}

// configSetup unmarshals config and runs validation without opening the ledger.
func configSetup(_ *cobra.Command, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle the environment and positional arguments (which Viper doesn't do).
	input.Home = os.Getenv(contract.HomeEnvVar)
	if len(args) == 1 {
		input.ProjectsFile = args[0]
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	contract.SetupLogging(os.Stderr, cfg.LogLevel)
	return nil
}

// sharedSetup validates config and opens the run ledger.
func sharedSetup(cmd *cobra.Command, args []string) error {
	if err := configSetup(cmd, args); err != nil {
		return err
	}
	if err := ledger.Init(cfg.LedgerBackend, cfg.LedgerDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// Execute runs the root command until it returns or a termination signal
// arrives, then closes the run ledger.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	defer ledger.Close()
	return rootCmd.ExecuteContext(ctx)
}

// SetStoreManager sets the global ledger manager.
func SetStoreManager(mgr contract.StoreManager) {
	storeManager = mgr
}
