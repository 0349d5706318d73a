// Package outwriter has output and writer logic.
package outwriter

import (
	"io"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteArchiveStatus prints the per dataset archive state using the configured output format.
func (ow *OutWriter) WriteArchiveStatus(statuses []schema.DatasetStatus, cfg *contract.Config) error {
	return PrintArchiveStatus(statuses, cfg)
}

// WriteRuns prints ledger runs using the configured output format.
func (ow *OutWriter) WriteRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	return PrintRuns(runs, cfg)
}

// WriteLedgerStatus prints ledger totals as plain text.
func (ow *OutWriter) WriteLedgerStatus(w io.Writer, status schema.LedgerStatus) {
	PrintLedgerStatus(w, status)
}

// WriteOutcomes prints a colored one-line summary per failed outcome and a total line.
func (ow *OutWriter) WriteOutcomes(w io.Writer, command string, outcomes []schema.EntityOutcome, cfg *contract.Config) {
	PrintOutcomeSummary(w, command, outcomes, cfg)
}

// WriteExport prints where a ledger export was written.
func (ow *OutWriter) WriteExport(w io.Writer, result ledger.ExportResult) {
	PrintExportResult(w, result)
}
