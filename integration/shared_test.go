//go:build basic || database

// Package integration contains integration tests for pra.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
// Or, with Docker available: go test -tags database ./integration
package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// sharedPraPath holds the path to a shared pra binary built once for all tests.
	sharedPraPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getPraBinary returns the path to the pra binary, building it once if needed.
func getPraBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		// Create a temp directory for the binary
		var err error
		tempDir, err = os.MkdirTemp("", "pra-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		praPath := filepath.Join(tempDir, "pra")
		buildCmd := exec.Command("go", "build", "-o", praPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build pra: %v", err))
		}

		sharedPraPath = praPath
	})

	return sharedPraPath
}

// runPra runs the pra binary with env appended to the current environment
// and returns its combined output.
func runPra(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getPraBinary(), args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), env...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Command failed: %s\nOutput: %s", cmd.String(), string(output))
	}
	return string(output), err
}

// seedDataDir creates a data directory with one archive and one staging
// file in the builds dataset.
func seedDataDir(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "jenkins_data", "jenkins_builds")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lang-build.csv"),
		[]byte("job,build_number,result\nlang-build,1,SUCCESS\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lang-build_staging.csv"),
		[]byte("job,build_number,result\nlang-build,2,FAILURE\nlang-build,1,SUCCESS\n"), 0o644))
	return dataDir
}

// exerciseLedger runs a merge and every ledger command against the backend
// configured in env.
func exerciseLedger(t *testing.T, env []string) {
	t.Helper()
	dataDir := seedDataDir(t)

	_, err := runPra(t, env, "ledger", "clear")
	require.NoError(t, err)

	out, err := runPra(t, env, "ledger", "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "version 2")

	out, err = runPra(t, env, "merge", "--data-dir", dataDir)
	require.NoError(t, err)
	require.Contains(t, out, "merged 1")

	archived, err := os.ReadFile(filepath.Join(dataDir, "jenkins_data", "jenkins_builds", "lang-build.csv"))
	require.NoError(t, err)
	require.Equal(t, "job,build_number,result\nlang-build,2,FAILURE\nlang-build,1,SUCCESS\n", string(archived))

	out, err = runPra(t, env, "ledger", "runs", "--output", "csv")
	require.NoError(t, err)
	require.Contains(t, out, "merge")
	require.Contains(t, out, "succeeded")

	_, err = runPra(t, env, "ledger", "status")
	require.NoError(t, err)

	prefix := filepath.Join(t.TempDir(), "ledger")
	_, err = runPra(t, env, "ledger", "export", "--output-file", prefix)
	require.NoError(t, err)
	require.FileExists(t, prefix+".runs.parquet")
	require.FileExists(t, prefix+".outcomes.parquet")
}
