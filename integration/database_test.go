//go:build database

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMySQL starts a MySQL container and returns its connection string.
func startMySQL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "pra",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mysqlC.Terminate(ctx) })

	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	return fmt.Sprintf("root:secret123@tcp(%s:%s)/pra?parseTime=true", host, port.Port())
}

// startPostgres starts a PostgreSQL container and returns its connection string.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
}

// exerciseStore drives a store directly through a run lifecycle.
func exerciseStore(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	t.Helper()
	require.NoError(t, ledger.Clear(backend, "", connStr))

	result, err := ledger.Migrate(backend, connStr, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.To)

	store, err := ledger.NewStore(backend, connStr)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun("merge", started, map[string]any{"data_dir": "/data"})
	require.NoError(t, err)
	require.NoError(t, store.RecordEntity(runID, schema.EntityOutcome{
		Dataset: "jenkins_builds", Entity: "job", Action: schema.ActionMerge, RowsIn: 2, RowsOut: 3,
	}))
	require.NoError(t, store.RecordEntity(runID, schema.EntityOutcome{
		Dataset: "jenkins_builds", Entity: "bad", Action: schema.ActionMerge, Error: "broken header",
	}))
	require.NoError(t, store.EndRun(runID, started.Add(2*time.Second), schema.RunPartial, 1, 1))

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, schema.RunPartial, runs[0].Status)
	assert.True(t, runs[0].StartedAt.Equal(started))
	require.NotNil(t, runs[0].EndedAt)

	outcomes, err := store.ListOutcomes(runID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "job", outcomes[0].Entity)
	assert.Equal(t, "broken header", outcomes[1].Error)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, 1, status.FailedEntities)
	assert.Equal(t, runID, status.LastRunID)
}

// TestPraWithMySQL tests the ledger with a MySQL backend.
func TestPraWithMySQL(t *testing.T) {
	connStr := startMySQL(t)

	t.Run("store", func(t *testing.T) {
		exerciseStore(t, schema.MySQLBackend, connStr)
	})
	t.Run("cli", func(t *testing.T) {
		exerciseLedger(t, []string{"PRA_LEDGER_BACKEND=mysql", "PRA_LEDGER_DB_CONNECT=" + connStr})
	})
}

// TestPraWithPostgres tests the ledger with a PostgreSQL backend.
func TestPraWithPostgres(t *testing.T) {
	connStr := startPostgres(t)

	t.Run("store", func(t *testing.T) {
		exerciseStore(t, schema.PostgreSQLBackend, connStr)
	})
	t.Run("cli", func(t *testing.T) {
		exerciseLedger(t, []string{"PRA_LEDGER_BACKEND=postgresql", "PRA_LEDGER_DB_CONNECT=" + connStr})
	})
}
