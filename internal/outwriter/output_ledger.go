package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// statusColors maps run statuses onto table colors.
var statusColors = map[schema.RunStatus]color.Attribute{
	schema.RunSucceeded: color.FgGreen,
	schema.RunPartial:   color.FgYellow,
	schema.RunFailed:    color.FgRed,
	schema.RunRunning:   color.FgCyan,
}

// PrintRuns outputs ledger runs, dispatching based on the output format configured.
func PrintRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, runsJSON(runs))
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsCSV(w, runs)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsTable(w, runs, cfg)
		}, "Wrote table")
	}
}

type runJSON struct {
	RunID          string           `json:"run_id"`
	Command        string           `json:"command"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
	Status         schema.RunStatus `json:"status"`
	EntitiesOK     int32            `json:"entities_ok"`
	EntitiesFailed int32            `json:"entities_failed"`
	Params         *string          `json:"params,omitempty"`
}

func runsJSON(runs []schema.RunRecord) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON(r))
	}
	return out
}

func writeRunsCSV(w io.Writer, runs []schema.RunRecord) error {
	header := []string{"run_id", "command", "started_at", "ended_at", "duration_ms", "status", "entities_ok", "entities_failed"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range runs {
			ended, duration := "", ""
			if r.EndedAt != nil {
				ended = r.EndedAt.UTC().Format(time.RFC3339)
				duration = strconv.FormatInt(r.EndedAt.Sub(r.StartedAt).Milliseconds(), 10)
			}
			record := []string{
				r.RunID,
				r.Command,
				r.StartedAt.UTC().Format(time.RFC3339),
				ended,
				duration,
				string(r.Status),
				strconv.Itoa(int(r.EntitiesOK)),
				strconv.Itoa(int(r.EntitiesFailed)),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

func writeRunsTable(w io.Writer, runs []schema.RunRecord, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Command", "Started", "Duration", "Status", "OK", "Failed"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range runs {
		duration := "-"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		status := string(r.Status)
		if attr, ok := statusColors[r.Status]; ok {
			status = paint(cfg, attr, status)
		}
		data = append(data, []string{
			shortID(r.RunID),
			r.Command,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			status,
			strconv.Itoa(int(r.EntitiesOK)),
			strconv.Itoa(int(r.EntitiesFailed)),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// shortID keeps the first uuid group.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintLedgerStatus prints ledger status information.
func PrintLedgerStatus(w io.Writer, status schema.LedgerStatus) {
	_, _ = fmt.Fprintf(w, "Ledger Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %s\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Local().Format(time.DateTime))
		_, _ = fmt.Fprintf(w, "Oldest Run: %s\n", status.OldestRunTime.Local().Format(time.DateTime))
		_, _ = fmt.Fprintf(w, "Failed Entities: %d\n", status.FailedEntities)
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	for _, table := range tables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}

// PrintOutcomeSummary prints failed entities and a one-line total for a run.
func PrintOutcomeSummary(w io.Writer, command string, outcomes []schema.EntityOutcome, cfg *contract.Config) {
	counts := map[schema.EntityAction]int{}
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			_, _ = fmt.Fprintf(w, "%s %s/%s: %s\n", paint(cfg, color.FgRed, "failed"), o.Dataset, o.Entity, o.Error)
			continue
		}
		counts[o.Action]++
	}

	line := fmt.Sprintf("%s: %d entities (fetched %d, bootstrapped %d, merged %d, skipped %d, failed %d)",
		command, len(outcomes),
		counts[schema.ActionFetch], counts[schema.ActionBootstrap], counts[schema.ActionMerge], counts[schema.ActionSkip], failed)
	if failed > 0 {
		line = paint(cfg, color.FgYellow, line)
	} else {
		line = paint(cfg, color.FgGreen, line)
	}
	_, _ = fmt.Fprintln(w, line)
}

// PrintExportResult prints the files written by a ledger export.
func PrintExportResult(w io.Writer, result ledger.ExportResult) {
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", result.RunCount, result.RunsFile)
	_, _ = fmt.Fprintf(w, "Exported %d entity outcomes to: %s\n", result.OutcomeCount, result.OutcomesFile)
}
