package ledger

import (
	"errors"
	"fmt"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/parquet"
)

// ErrEmptyLedger is returned when there is nothing to export.
var ErrEmptyLedger = errors.New("no ledger data found to export")

// ExportResult lists the files written by Export.
type ExportResult struct {
	RunsFile     string
	RunCount     int
	OutcomesFile string
	OutcomeCount int
}

// Export writes every run and outcome to "<prefix>.runs.parquet" and
// "<prefix>.outcomes.parquet".
func Export(store contract.LedgerStore, prefix string) (ExportResult, error) {
	var result ExportResult
	if prefix == "" {
		return result, errors.New("--output-file is required for export")
	}

	status, err := store.GetStatus()
	if err != nil {
		return result, fmt.Errorf("failed to get ledger status: %w", err)
	}
	if status.TotalRuns == 0 {
		return result, ErrEmptyLedger
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		return result, fmt.Errorf("failed to retrieve runs: %w", err)
	}
	outcomes, err := store.ListOutcomes("")
	if err != nil {
		return result, fmt.Errorf("failed to retrieve entity outcomes: %w", err)
	}

	result.RunsFile = prefix + ".runs.parquet"
	parquetRuns := parquet.ConvertRunRecords(runs)
	if err := parquet.WriteRunsParquet(parquetRuns, result.RunsFile); err != nil {
		return result, fmt.Errorf("failed to write runs: %w", err)
	}
	result.RunCount = len(parquetRuns)

	result.OutcomesFile = prefix + ".outcomes.parquet"
	parquetOutcomes := parquet.ConvertOutcomeRecords(outcomes)
	if err := parquet.WriteOutcomesParquet(parquetOutcomes, result.OutcomesFile); err != nil {
		return result, fmt.Errorf("failed to write entity outcomes: %w", err)
	}
	result.OutcomeCount = len(parquetOutcomes)
	return result, nil
}
