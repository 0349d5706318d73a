package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// statusCSVHeader is the column set of the CSV and the order of the table.
var statusCSVHeader = []string{
	"dataset", "entity", "archive_rows", "archive_bytes", "pending", "staging_rows", "modified_at",
}

// PrintArchiveStatus outputs the archive status, dispatching based on the output format configured.
func PrintArchiveStatus(statuses []schema.DatasetStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, statuses)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatusCSV(w, statuses)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatusTable(w, statuses, cfg, time.Now())
		}, "Wrote table")
	}
	return nil
}

// writeStatusCSV writes one line per entity.
func writeStatusCSV(w io.Writer, statuses []schema.DatasetStatus) error {
	return writeCSVWithHeader(w, statusCSVHeader, func(cw *csv.Writer) error {
		for _, ds := range statuses {
			for _, e := range ds.Entities {
				modified := ""
				if !e.ModifiedAt.IsZero() {
					modified = e.ModifiedAt.UTC().Format(time.RFC3339)
				}
				record := []string{
					e.Dataset,
					e.Entity,
					strconv.Itoa(e.ArchiveRows),
					strconv.FormatInt(e.ArchiveBytes, 10),
					strconv.FormatBool(e.Pending),
					strconv.Itoa(e.StagingRows),
					modified,
				}
				if err := cw.Write(record); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
		return nil
	})
}

// writeStatusTable renders the human-readable table and a summary line.
func writeStatusTable(w io.Writer, statuses []schema.DatasetStatus, cfg *contract.Config, now time.Time) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Dataset", "Entity", "Rows", "Size", "Pending", "Staged", "Modified"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	entityWidth := GetMaxTableEntityWidth(cfg)
	var (
		data     [][]string
		entities int
		pending  int
		rows     int
		missing  int
	)
	for _, ds := range statuses {
		if !ds.Exists {
			missing++
			data = append(data, []string{ds.Dataset, paint(cfg, color.FgRed, "(missing)"), "-", "-", "-", "-", "-"})
			continue
		}
		for _, e := range ds.Entities {
			entities++
			rows += e.ArchiveRows

			pendingCell := "no"
			staged := "-"
			if e.Pending {
				pending++
				pendingCell = paint(cfg, color.FgYellow, "yes")
				staged = humanize.Comma(int64(e.StagingRows))
			}
			size, modified := "-", "-"
			if !e.ModifiedAt.IsZero() {
				size = humanize.Bytes(uint64(e.ArchiveBytes))
				modified = humanize.RelTime(e.ModifiedAt, now, "ago", "from now")
			}
			data = append(data, []string{
				ds.Dataset,
				contract.TruncatePath(e.Entity, entityWidth),
				humanize.Comma(int64(e.ArchiveRows)),
				size,
				pendingCell,
				staged,
				modified,
			})
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d datasets (%d missing), %d entities, %s archived rows, %d pending staging files\n",
		len(statuses), missing, entities, humanize.Comma(int64(rows)), pending)
	return err
}
