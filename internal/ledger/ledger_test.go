package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/pra/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_NoneBackend(t *testing.T) {
	store, err := NewStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun("merge", time.Now(), map[string]any{"k": "v"})
	assert.NoError(t, err)
	assert.Empty(t, runID)

	assert.NoError(t, store.RecordEntity("x", schema.EntityOutcome{Entity: "e"}))
	assert.NoError(t, store.EndRun("x", time.Now(), schema.RunSucceeded, 1, 0))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)

	runs, err := store.ListRuns(10)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, store.Close())
}

func TestStore_UnsupportedBackend(t *testing.T) {
	_, err := NewStore(schema.DatabaseBackend("oracle"), "")
	assert.Error(t, err)
}

func TestStore_RunLifecycle(t *testing.T) {
	store := newSQLiteStore(t)

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun("merge", start, map[string]any{"data_dir": "/data"})
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	require.NoError(t, store.RecordEntity(runID, schema.EntityOutcome{
		Dataset: "jenkins_builds", Entity: "job-a", Action: schema.ActionMerge, RowsIn: 3, RowsOut: 10,
		Recorded: start.Add(time.Second),
	}))
	require.NoError(t, store.RecordEntity(runID, schema.EntityOutcome{
		Dataset: "jenkins_builds", Entity: "job-b", Action: schema.ActionSkip, Error: "bad header",
		Recorded: start.Add(2 * time.Second),
	}))

	end := start.Add(1500 * time.Millisecond)
	require.NoError(t, store.EndRun(runID, end, schema.RunPartial, 1, 1))

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, "merge", run.Command)
	assert.True(t, run.StartedAt.Equal(start))
	require.NotNil(t, run.EndedAt)
	assert.True(t, run.EndedAt.Equal(end))
	assert.Equal(t, schema.RunPartial, run.Status)
	assert.Equal(t, int32(1), run.EntitiesOK)
	assert.Equal(t, int32(1), run.EntitiesFailed)
	require.NotNil(t, run.Params)
	assert.JSONEq(t, `{"data_dir":"/data"}`, *run.Params)

	var durationMs int64
	require.NoError(t, store.db.QueryRow("SELECT run_duration_ms FROM pra_runs WHERE run_id = ?", runID).Scan(&durationMs))
	assert.Equal(t, int64(1500), durationMs)

	outcomes, err := store.ListOutcomes(runID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "job-a", outcomes[0].Entity)
	assert.Equal(t, schema.ActionMerge, outcomes[0].Action)
	assert.Equal(t, 3, outcomes[0].RowsIn)
	assert.Equal(t, 10, outcomes[0].RowsOut)
	assert.False(t, outcomes[0].Failed())
	assert.Equal(t, "bad header", outcomes[1].Error)
	assert.True(t, outcomes[1].Failed())
	assert.True(t, outcomes[1].Recorded.Equal(start.Add(2*time.Second)))
}

func TestStore_EndRunUnknown(t *testing.T) {
	store := newSQLiteStore(t)
	err := store.EndRun("missing", time.Now(), schema.RunSucceeded, 0, 0)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ListRunsOrderAndLimit(t *testing.T) {
	store := newSQLiteStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		// Whole seconds and fractions must still sort chronologically.
		start := base.Add(time.Duration(i) * 500 * time.Millisecond)
		id, err := store.BeginRun("sonar-fetch", start, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[1], runs[1].RunID)
	assert.Nil(t, runs[0].EndedAt)
	assert.Equal(t, schema.RunRunning, runs[0].Status)
}

func TestStore_GetStatus(t *testing.T) {
	store := newSQLiteStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalRuns)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	_, err = store.BeginRun("merge", first, nil)
	require.NoError(t, err)
	lastID, err := store.BeginRun("merge", second, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordEntity(lastID, schema.EntityOutcome{Dataset: "d", Entity: "e", Action: schema.ActionSkip, Error: "boom"}))
	require.NoError(t, store.RecordEntity(lastID, schema.EntityOutcome{Dataset: "d", Entity: "f", Action: schema.ActionMerge}))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, lastID, status.LastRunID)
	assert.True(t, status.LastRunTime.Equal(second))
	assert.True(t, status.OldestRunTime.Equal(first))
	assert.Equal(t, 1, status.FailedEntities)
	assert.Equal(t, int64(2), status.TableSizes[RunsTable])
	assert.Equal(t, int64(2), status.TableSizes[OutcomesTable])
}

func TestStore_ListOutcomesAllRuns(t *testing.T) {
	store := newSQLiteStore(t)
	a, err := store.BeginRun("merge", time.Now(), nil)
	require.NoError(t, err)
	b, err := store.BeginRun("merge", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordEntity(a, schema.EntityOutcome{Dataset: "d", Entity: "x", Action: schema.ActionFetch}))
	require.NoError(t, store.RecordEntity(b, schema.EntityOutcome{Dataset: "d", Entity: "y", Action: schema.ActionFetch}))

	all, err := store.ListOutcomes("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a, all[0].RunID)
	assert.Equal(t, b, all[1].RunID)
	assert.False(t, all[0].Recorded.IsZero())
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := NewStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	runID, err := store.BeginRun("merge", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
}

func TestRebind(t *testing.T) {
	pg := &Store{backend: schema.PostgreSQLBackend}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &Store{backend: schema.SQLiteBackend}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestDBTimeScan(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	cases := []any{
		want,
		"2024-05-06T07:08:09.123000000Z",
		[]byte("2024-05-06 07:08:09.123"),
	}
	for _, c := range cases {
		var d dbTime
		require.NoError(t, d.Scan(c))
		assert.True(t, d.Valid)
		assert.True(t, d.Time.Equal(want), "%v", c)
	}

	var d dbTime
	require.NoError(t, d.Scan(nil))
	assert.False(t, d.Valid)
	assert.Error(t, d.Scan("yesterday"))
	assert.Error(t, d.Scan(42))
}

func TestQuoteAndValidateTableName(t *testing.T) {
	assert.Equal(t, "`pra_runs`", quoteTableName(RunsTable, schema.MySQLBackend))
	assert.Equal(t, `"pra_runs"`, quoteTableName(RunsTable, schema.PostgreSQLBackend))
	assert.NoError(t, validateTableName(OutcomesTable))
	assert.Error(t, validateTableName("runs; DROP TABLE x"))
	assert.Error(t, validateTableName("1runs"))
	assert.Error(t, validateTableName(""))
}

func TestMigrate_NoneBackend(t *testing.T) {
	_, err := Migrate(schema.NoneBackend, "", -1)
	assert.Error(t, err)
}

func TestMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	res, err := Migrate(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, uint(2), res.To)

	res, err = Migrate(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = Migrate(schema.SQLiteBackend, path, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), res.From)
	assert.Equal(t, uint(1), res.To)

	_, err = Migrate(schema.SQLiteBackend, path, 0)
	require.NoError(t, err)

	_, err = Migrate(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)

	// The store opens cleanly on a migrated database.
	store, err := NewStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clear.db")
	store, err := NewStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, Clear(schema.SQLiteBackend, path, ""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	assert.NoError(t, Clear(schema.SQLiteBackend, path, ""))
	assert.Error(t, Clear(schema.SQLiteBackend, "", ""))
	assert.NoError(t, Clear(schema.NoneBackend, "", ""))
	assert.Error(t, Clear(schema.DatabaseBackend("oracle"), "", ""))
}

func TestExport(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := Export(store, filepath.Join(t.TempDir(), "empty"))
	assert.ErrorIs(t, err, ErrEmptyLedger)

	_, err = Export(store, "")
	assert.Error(t, err)

	runID, err := store.BeginRun("merge", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordEntity(runID, schema.EntityOutcome{Dataset: "d", Entity: "e", Action: schema.ActionMerge, RowsIn: 1, RowsOut: 1}))
	require.NoError(t, store.EndRun(runID, time.Now(), schema.RunSucceeded, 1, 0))

	prefix := filepath.Join(t.TempDir(), "ledger")
	res, err := Export(store, prefix)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RunCount)
	assert.Equal(t, 1, res.OutcomeCount)
	assert.FileExists(t, prefix+".runs.parquet")
	assert.FileExists(t, prefix+".outcomes.parquet")
}

func TestManagerWithoutInit(t *testing.T) {
	mgr := &StoreManager{}
	store := mgr.GetLedgerStore()
	require.NotNil(t, store)
	runID, err := store.BeginRun("merge", time.Now(), nil)
	assert.NoError(t, err)
	assert.Empty(t, runID)
}
