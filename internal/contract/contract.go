// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"time"

	"github.com/huangsam/pra/schema"
)

// StoreManager defines the interface for managing persistence stores.
// This allows the ledger layer to be mocked for testing.
type StoreManager interface {
	GetLedgerStore() LedgerStore
}

// LedgerStore defines the interface for tracking runs and per-entity outcomes.
type LedgerStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(command string, startTime time.Time, params map[string]any) (string, error)

	// RecordEntity stores the outcome of one entity within a run
	RecordEntity(runID string, outcome schema.EntityOutcome) error

	// EndRun marks the run finished with its final counters
	EndRun(runID string, endTime time.Time, status schema.RunStatus, ok, failed int) error

	// GetStatus returns status information about the ledger
	GetStatus() (schema.LedgerStatus, error)

	// ListRuns returns the most recent runs first; limit <= 0 returns all
	ListRuns(limit int) ([]schema.RunRecord, error)

	// ListOutcomes returns the entity outcomes of a run; empty runID returns all
	ListOutcomes(runID string) ([]schema.EntityOutcome, error)

	// Close closes the underlying connection
	Close() error
}
