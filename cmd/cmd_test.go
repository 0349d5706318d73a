package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	paths := [][]string{
		{"sonar", "fetch"},
		{"sonar", "catalog"},
		{"jenkins", "fetch"},
		{"merge"},
		{"status"},
		{"schedule"},
		{"ledger", "status"},
		{"ledger", "runs"},
		{"ledger", "export"},
		{"ledger", "clear"},
		{"ledger", "migrate"},
		{"mcp"},
		{"version"},
	}
	for _, p := range paths {
		c, rest, err := rootCmd.Find(p)
		require.NoError(t, err, p)
		assert.Empty(t, rest, p)
		assert.Equal(t, p[len(p)-1], c.Name())
	}
}

func TestSourceFlagsBindToDistinctKeys(t *testing.T) {
	sonarServer := sonarCmd.PersistentFlags().Lookup("server")
	jenkinsServer := jenkinsCmd.PersistentFlags().Lookup("server")
	require.NotNil(t, sonarServer)
	require.NotNil(t, jenkinsServer)
	assert.NotSame(t, sonarServer, jenkinsServer)

	assert.NotNil(t, sonarFetchCmd.Flags().Lookup("output-dir"))
	assert.NotNil(t, jenkinsFetchCmd.Flags().Lookup("output-dir"))
	assert.NotNil(t, ledgerMigrateCmd.Flags().Lookup("target-version"))
}
