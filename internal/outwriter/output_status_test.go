package outwriter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modified = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func sampleStatuses() []schema.DatasetStatus {
	return []schema.DatasetStatus{
		{
			Dataset: "jenkins_builds",
			Dir:     "/data/jenkins_data/jenkins_builds",
			Exists:  true,
			Entities: []schema.ArchiveStatus{
				{Dataset: "jenkins_builds", Entity: "job-a", ArchiveRows: 1200, ArchiveBytes: 2048, ModifiedAt: modified},
				{Dataset: "jenkins_builds", Entity: "job-b", Pending: true, StagingRows: 4},
			},
		},
		{Dataset: "jenkins_tests", Dir: "/data/jenkins_data/jenkins_tests"},
	}
}

func TestWriteStatusCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatusCSV(&buf, sampleStatuses()))

	expected := "dataset,entity,archive_rows,archive_bytes,pending,staging_rows,modified_at\n" +
		"jenkins_builds,job-a,1200,2048,false,0,2024-02-01T12:00:00Z\n" +
		"jenkins_builds,job-b,0,0,true,4,\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteStatusTable(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Width: 200}
	require.NoError(t, writeStatusTable(&buf, sampleStatuses(), cfg, modified.Add(2*time.Hour)))

	out := buf.String()
	assert.Contains(t, out, "job-a")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "2 datasets (1 missing), 2 entities, 1,200 archived rows, 1 pending staging files")
}

func TestPrintArchiveStatusJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: path}
	require.NoError(t, PrintArchiveStatus(sampleStatuses(), cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []schema.DatasetStatus
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "job-b", decoded[0].Entities[1].Entity)
	assert.True(t, decoded[0].Entities[1].Pending)
	assert.False(t, decoded[1].Exists)
}

func TestPaint(t *testing.T) {
	assert.Equal(t, "x", paint(nil, 31, "x"))
	assert.Equal(t, "x", paint(&contract.Config{UseColors: false}, 31, "x"))
	colored := paint(&contract.Config{UseColors: true}, 31, "x")
	assert.Contains(t, colored, "x")
	assert.NotEqual(t, "x", colored)
}

func TestGetMaxTableEntityWidth(t *testing.T) {
	assert.Equal(t, 15, GetMaxTableEntityWidth(&contract.Config{Width: 80}))
	assert.Equal(t, 30, GetMaxTableEntityWidth(&contract.Config{Width: 120}))
	assert.Equal(t, 60, GetMaxTableEntityWidth(&contract.Config{Width: 400}))
}

func sampleRuns() []schema.RunRecord {
	ended := modified.Add(1500 * time.Millisecond)
	return []schema.RunRecord{
		{
			RunID: "0b7c9a2e-1111-2222-3333-444455556666", Command: "merge", StartedAt: modified,
			EndedAt: &ended, Status: schema.RunPartial, EntitiesOK: 3, EntitiesFailed: 1,
		},
		{RunID: "short", Command: "sonar-fetch", StartedAt: modified, Status: schema.RunRunning},
	}
}

func TestWriteRunsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRunsCSV(&buf, sampleRuns()))

	expected := "run_id,command,started_at,ended_at,duration_ms,status,entities_ok,entities_failed\n" +
		"0b7c9a2e-1111-2222-3333-444455556666,merge,2024-02-01T12:00:00Z,2024-02-01T12:00:01Z,1500,partial,3,1\n" +
		"short,sonar-fetch,2024-02-01T12:00:00Z,,,running,0,0\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteRunsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRunsTable(&buf, sampleRuns(), &contract.Config{}))
	out := buf.String()
	assert.Contains(t, out, "0b7c9a2e")
	assert.NotContains(t, out, "444455556666")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "partial")
}

func TestRunsJSON(t *testing.T) {
	out := runsJSON(sampleRuns())
	require.Len(t, out, 2)
	data, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ended_at")
	assert.Contains(t, string(data), `"status":"running"`)
}

func TestPrintLedgerStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintLedgerStatus(&buf, schema.LedgerStatus{Backend: "none"})
	assert.Equal(t, "Ledger Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	PrintLedgerStatus(&buf, schema.LedgerStatus{
		Backend:        "sqlite",
		Connected:      true,
		TotalRuns:      2,
		LastRunID:      "abc",
		FailedEntities: 1,
		TableSizes:     map[string]int64{"pra_runs": 2, "pra_entity_outcomes": 5},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Runs: 2\n")
	assert.Contains(t, out, "Last Run ID: abc\n")
	assert.Contains(t, out, "Failed Entities: 1\n")
	assert.Contains(t, out, "Table Sizes:\n  pra_entity_outcomes: 5 rows\n  pra_runs: 2 rows\n")
}

func TestPrintOutcomeSummary(t *testing.T) {
	var buf bytes.Buffer
	outcomes := []schema.EntityOutcome{
		{Dataset: "d", Entity: "a", Action: schema.ActionBootstrap},
		{Dataset: "d", Entity: "b", Action: schema.ActionMerge},
		{Dataset: "d", Entity: "c", Action: schema.ActionSkip, Error: "bad header"},
	}
	PrintOutcomeSummary(&buf, "merge", outcomes, &contract.Config{})
	assert.Equal(t,
		"failed d/c: bad header\nmerge: 3 entities (fetched 0, bootstrapped 1, merged 1, skipped 0, failed 1)\n",
		buf.String())
}

func TestPrintExportResult(t *testing.T) {
	var buf bytes.Buffer
	PrintExportResult(&buf, ledger.ExportResult{RunsFile: "x.runs.parquet", RunCount: 2, OutcomesFile: "x.outcomes.parquet", OutcomeCount: 7})
	assert.Equal(t, "Exported 2 runs to: x.runs.parquet\nExported 7 entity outcomes to: x.outcomes.parquet\n", buf.String())
}
