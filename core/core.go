// Package core has the orchestration logic for fetching, merging and reporting.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/metrics"
	"github.com/huangsam/pra/schema"
)

// ExecutorFunc defines the function signature for executing commands that
// record into the run ledger.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// Command names recorded in the ledger and in metrics.
const (
	SonarFetchCommand   = "sonar-fetch"
	JenkinsFetchCommand = "jenkins-fetch"
	MergeCommand        = "merge"
)

// runTracker records one run in the ledger and metrics. Ledger failures are
// logged and never abort the run.
type runTracker struct {
	store    contract.LedgerStore
	recorder *metrics.Recorder
	command  string
	runID    string
	started  time.Time
	ok       int
	failed   int
	outcomes []schema.EntityOutcome
}

// beginRun starts tracking a run.
func beginRun(mgr contract.StoreManager, rec *metrics.Recorder, command string, params map[string]any) *runTracker {
	t := &runTracker{recorder: rec, command: command, started: time.Now()}
	if mgr != nil {
		t.store = mgr.GetLedgerStore()
	}
	if t.store == nil {
		return t
	}
	runID, err := t.store.BeginRun(command, t.started, params)
	if err != nil {
		contract.LogWarn("Run ledger initialization failed", err)
		t.store = nil
		return t
	}
	t.runID = runID
	return t
}

// record stores one entity outcome.
func (t *runTracker) record(outcome schema.EntityOutcome) {
	outcome.RunID = t.runID
	if outcome.Recorded.IsZero() {
		outcome.Recorded = time.Now().UTC()
	}
	t.outcomes = append(t.outcomes, outcome)

	label := metrics.OutcomeOK
	switch {
	case outcome.Failed():
		t.failed++
		label = metrics.OutcomeError
	case outcome.Action == schema.ActionSkip:
		label = metrics.OutcomeSkipped
	default:
		t.ok++
	}
	t.recorder.ObserveEntity(t.command, label)
	if outcome.Action == schema.ActionMerge || outcome.Action == schema.ActionBootstrap {
		t.recorder.AddArchiveRows(outcome.Dataset, outcome.RowsOut)
	}

	if t.store != nil && t.runID != "" {
		if err := t.store.RecordEntity(t.runID, outcome); err != nil {
			contract.LogWarn("Failed to record entity outcome", err)
		}
	}
}

// finish closes the run. runErr is the error that aborted the run, if any.
func (t *runTracker) finish(runErr error) schema.RunStatus {
	status := runStatus(runErr, t.ok, t.failed)
	if t.store != nil && t.runID != "" {
		if err := t.store.EndRun(t.runID, time.Now(), status, t.ok, t.failed); err != nil {
			contract.LogWarn("Failed to finalize run tracking", err)
		}
	}
	return status
}

// done closes a run that was not aborted. It returns an error only when
// every processed entity failed.
func (t *runTracker) done() error {
	if t.finish(nil) == schema.RunFailed {
		return fmt.Errorf("%s: all %d entities failed", t.command, t.failed)
	}
	return nil
}

// runStatus derives the terminal status of a run.
func runStatus(runErr error, ok, failed int) schema.RunStatus {
	switch {
	case runErr != nil:
		return schema.RunFailed
	case failed > 0 && ok == 0:
		return schema.RunFailed
	case failed > 0:
		return schema.RunPartial
	default:
		return schema.RunSucceeded
	}
}

// newRecorder returns a metrics recorder when a metrics file is configured.
func newRecorder(cfg *contract.Config) *metrics.Recorder {
	if cfg.MetricsFile == "" {
		return nil
	}
	return metrics.New()
}

// flushMetrics writes the metrics textfile, if any.
func flushMetrics(cfg *contract.Config, rec *metrics.Recorder) {
	if rec == nil || cfg.MetricsFile == "" {
		return
	}
	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		contract.LogWarn("Failed to write metrics file", err)
	}
}
