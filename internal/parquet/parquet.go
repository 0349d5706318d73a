// Package parquet exports run ledger records and typed tables to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/pra/schema"
	"github.com/parquet-go/parquet-go"
)

// Run is a single pra command run.
// This struct maps to the pra_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID string `parquet:"run_id,snappy"`

	// Command is the subcommand that started the run
	Command string `parquet:"command,snappy"`

	// StartedAt is when the run began
	StartedAt time.Time `parquet:"started_at,snappy"`

	// EndedAt is when the run finished (nullable while running)
	EndedAt *time.Time `parquet:"ended_at,optional,snappy"`

	// RunDurationMs is the wall time of the run in milliseconds (nullable)
	RunDurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	Status string `parquet:"status,snappy"`

	EntitiesOK     int32 `parquet:"entities_ok,snappy"`
	EntitiesFailed int32 `parquet:"entities_failed,snappy"`

	// Params contains the JSON-encoded run parameters (nullable)
	Params *string `parquet:"params,optional,snappy"`
}

// Outcome is the result of one entity within a run.
// This struct maps to the pra_entity_outcomes database table.
type Outcome struct {
	RunID    string    `parquet:"run_id,snappy"`
	Dataset  string    `parquet:"dataset,snappy"`
	Entity   string    `parquet:"entity,snappy"`
	Action   string    `parquet:"action,snappy"`
	RowsIn   int64     `parquet:"rows_in,snappy"`
	RowsOut  int64     `parquet:"rows_out,snappy"`
	Error    *string   `parquet:"error,optional,snappy"`
	Recorded time.Time `parquet:"recorded_at,snappy"`
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeGeneric(data, outputPath)
}

// WriteOutcomesParquet writes a slice of Outcome structs to a Parquet file.
func WriteOutcomesParquet(data []Outcome, outputPath string) error {
	return writeGeneric(data, outputPath)
}

func writeGeneric[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		var duration *int64
		if record.EndedAt != nil {
			ms := record.EndedAt.Sub(record.StartedAt).Milliseconds()
			duration = &ms
		}
		result[i] = Run{
			RunID:          record.RunID,
			Command:        record.Command,
			StartedAt:      record.StartedAt,
			EndedAt:        record.EndedAt,
			RunDurationMs:  duration,
			Status:         string(record.Status),
			EntitiesOK:     record.EntitiesOK,
			EntitiesFailed: record.EntitiesFailed,
			Params:         record.Params,
		}
	}
	return result
}

// ConvertOutcomeRecords converts schema.EntityOutcome to Outcome for Parquet export.
func ConvertOutcomeRecords(records []schema.EntityOutcome) []Outcome {
	result := make([]Outcome, len(records))
	for i, record := range records {
		var errText *string
		if record.Failed() {
			e := record.Error
			errText = &e
		}
		result[i] = Outcome{
			RunID:    record.RunID,
			Dataset:  record.Dataset,
			Entity:   record.Entity,
			Action:   string(record.Action),
			RowsIn:   int64(record.RowsIn),
			RowsOut:  int64(record.RowsOut),
			Error:    errText,
			Recorded: record.Recorded,
		}
	}
	return result
}
