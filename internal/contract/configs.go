package contract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/pra/schema"
)

// Default values for configuration.
const (
	DefaultSonarServer       = "https://sonarcloud.io/"
	DefaultSonarOrganization = "apache"
	DefaultJenkinsServer     = "https://builds.apache.org/"
	DefaultCatalogPath       = "./all_metrics.txt"
	DefaultSonarOutputDir    = "./sonar_data"
	DefaultJenkinsOutputDir  = "./jenkins_data"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultMaxRetries        = 3
	MaxRetriesLimit          = 10
	HomeEnvVar               = "PRA_HOME"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	Home       string // Project home from PRA_HOME, may be empty
	DataDir    string // Root of the staging/archive datasets
	LayoutFile string // Optional YAML dataset layout override
	DedupKey   []string

	SonarServer       string
	SonarOrganization string
	CatalogPath       string
	SonarOutputDir    string
	Format            schema.OutputMode
	Load              schema.LoadMode

	JenkinsServer    string
	JenkinsUser      string
	JenkinsToken     string // Please use env var as this is plaintext
	JenkinsOutputDir string
	ProjectsFile     string

	RequestTimeout time.Duration
	MaxRetries     int

	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	LedgerBackend   schema.DatabaseBackend
	LedgerDBConnect string // Please use env var as this is plaintext

	MetricsFile string
	CronSpec    string
	LogLevel    slog.Level
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from the environment, so no tag
	Home string

	// --- Fields from rootCmd.PersistentFlags() ---
	DataDir         string `mapstructure:"data-dir"`
	Layout          string `mapstructure:"layout"`
	Output          string `mapstructure:"output"`
	OutputFile      string `mapstructure:"output-file"`
	Width           int    `mapstructure:"width"`
	Color           string `mapstructure:"color"`
	LedgerBackend   string `mapstructure:"ledger-backend"`
	LedgerDBConnect string `mapstructure:"ledger-db-connect"`
	MetricsFile     string `mapstructure:"metrics-file"`
	LogLevel        string `mapstructure:"log-level"`
	Timeout         string `mapstructure:"timeout"`
	Retries         int    `mapstructure:"retries"`

	// --- Fields from the sonar commands ---
	SonarServer       string `mapstructure:"sonar-server"`
	SonarOrganization string `mapstructure:"organization"`
	Catalog           string `mapstructure:"catalog"`
	SonarOutputDir    string `mapstructure:"sonar-output-dir"`
	Format            string `mapstructure:"format"`
	Load              string `mapstructure:"load"`

	// --- Fields from the jenkins commands ---
	JenkinsServer    string `mapstructure:"jenkins-server"`
	JenkinsUser      string `mapstructure:"jenkins-user"`
	JenkinsToken     string `mapstructure:"jenkins-token"`
	JenkinsOutputDir string `mapstructure:"jenkins-output-dir"`
	ProjectsFile     string `mapstructure:"projects-file"`

	// --- Fields from mergeCmd.Flags() ---
	DedupKey string `mapstructure:"dedup-key"`

	// --- Fields from scheduleCmd.Flags() ---
	Cron string `mapstructure:"cron"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.DedupKey = slices.Clone(c.DedupKey)
	return &clone
}

// ResolveDataDir returns the data directory, failing when neither an explicit
// directory nor PRA_HOME is available.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return "", &ConfigError{Key: "data-dir", Err: ErrMissingHome}
}

// ProcessAndValidate populates cfg from the raw input, validating as it goes.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processNetworkSettings(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return resolvePaths(cfg, input)
}

// validateSimpleInputs handles enum-like and boolean inputs.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Format = schema.OutputMode(strings.ToLower(orDefault(input.Format, string(schema.CSVOut))))
	if _, ok := schema.ValidFetchFormats[cfg.Format]; !ok {
		return configErrorf("format", "must be csv or parquet, got %q", input.Format)
	}

	cfg.Output = schema.OutputMode(strings.ToLower(orDefault(input.Output, string(schema.TextOut))))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return configErrorf("output", "must be text, csv or json, got %q", input.Output)
	}

	cfg.Load = schema.LoadMode(strings.ToLower(orDefault(input.Load, string(schema.IncrementalLoad))))
	if _, ok := schema.ValidLoadModes[cfg.Load]; !ok {
		return configErrorf("load", "must be first or incremental, got %q", input.Load)
	}

	if input.Width < 0 {
		return configErrorf("width", "must be non-negative, got %d", input.Width)
	}
	cfg.Width = input.Width

	useColors, err := ParseBoolString(orDefault(input.Color, "yes"))
	if err != nil {
		return &ConfigError{Key: "color", Err: err}
	}
	cfg.UseColors = useColors

	level, err := ParseLogLevel(orDefault(input.LogLevel, "info"))
	if err != nil {
		return &ConfigError{Key: "log-level", Err: err}
	}
	cfg.LogLevel = level

	cfg.DedupKey = splitList(input.DedupKey)
	cfg.OutputFile = input.OutputFile
	cfg.MetricsFile = input.MetricsFile
	cfg.CronSpec = strings.TrimSpace(input.Cron)
	return nil
}

// processNetworkSettings parses upstream endpoints, credentials, timeout and retries.
func processNetworkSettings(cfg *Config, input *ConfigRawInput) error {
	cfg.SonarServer = ensureTrailingSlash(orDefault(input.SonarServer, DefaultSonarServer))
	cfg.SonarOrganization = orDefault(input.SonarOrganization, DefaultSonarOrganization)
	cfg.JenkinsServer = ensureTrailingSlash(orDefault(input.JenkinsServer, DefaultJenkinsServer))
	cfg.JenkinsUser = input.JenkinsUser
	cfg.JenkinsToken = input.JenkinsToken
	if (cfg.JenkinsUser == "") != (cfg.JenkinsToken == "") {
		return configErrorf("jenkins-token", "jenkins-user and jenkins-token must be set together")
	}

	cfg.RequestTimeout = DefaultRequestTimeout
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return &ConfigError{Key: "timeout", Err: err}
		}
		if d <= 0 {
			return configErrorf("timeout", "must be positive, got %s", d)
		}
		cfg.RequestTimeout = d
	}

	if input.Retries < 0 || input.Retries > MaxRetriesLimit {
		return configErrorf("retries", "must be between 0 and %d, got %d", MaxRetriesLimit, input.Retries)
	}
	cfg.MaxRetries = input.Retries
	return nil
}

// validateBackendConfigs validates the ledger backend and its connection string.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.LedgerBackend = schema.DatabaseBackend(strings.ToLower(orDefault(input.LedgerBackend, string(schema.SQLiteBackend))))
	if _, ok := schema.ValidLedgerBackends[cfg.LedgerBackend]; !ok {
		return configErrorf("ledger-backend", "must be sqlite, mysql, postgresql or none, got %q", input.LedgerBackend)
	}
	cfg.LedgerDBConnect = input.LedgerDBConnect
	if err := ValidateDatabaseConnectionString(cfg.LedgerBackend, cfg.LedgerDBConnect); err != nil {
		return &ConfigError{Key: "ledger-db-connect", Err: err}
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for backends that need one.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("ledger-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("ledger-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// resolvePaths fills path settings, defaulting the data directory to PRA_HOME/data.
func resolvePaths(cfg *Config, input *ConfigRawInput) error {
	cfg.Home = strings.TrimSpace(input.Home)
	cfg.DataDir = input.DataDir
	if cfg.DataDir == "" && cfg.Home != "" {
		cfg.DataDir = filepath.Join(cfg.Home, "data")
	}

	cfg.LayoutFile = input.Layout
	if cfg.LayoutFile != "" {
		if _, err := os.Stat(cfg.LayoutFile); err != nil {
			return &ConfigError{Key: "layout", Err: err}
		}
	}

	cfg.CatalogPath = orDefault(input.Catalog, DefaultCatalogPath)
	// Producers write next to the archives when a data directory is known.
	sonarOut, jenkinsOut := DefaultSonarOutputDir, DefaultJenkinsOutputDir
	if cfg.DataDir != "" {
		sonarOut = filepath.Join(cfg.DataDir, "sonar_data")
		jenkinsOut = filepath.Join(cfg.DataDir, "jenkins_data")
	}
	cfg.SonarOutputDir = orDefault(input.SonarOutputDir, sonarOut)
	cfg.JenkinsOutputDir = orDefault(input.JenkinsOutputDir, jenkinsOut)
	cfg.ProjectsFile = input.ProjectsFile
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
