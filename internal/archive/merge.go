package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/pra/internal/table"
	"github.com/huangsam/pra/schema"
)

// stagingPattern matches the staging files of a dataset directory.
const stagingPattern = "*" + schema.StagingSuffix + schema.CSVExt

// Merger merges staging files into archives.
type Merger struct {
	// DedupKey switches deduplication from full-row equality to the first
	// occurrence per key. Empty keeps full-row equality.
	DedupKey []string
}

// ArchivePath returns the archive file of a staging file: the same name with
// the staging marker removed.
func ArchivePath(stagingPath string) string {
	dir, base := filepath.Split(stagingPath)
	return filepath.Join(dir, EntityName(base)+schema.CSVExt)
}

// EntityName returns the entity of a staging or archive file name.
func EntityName(fileName string) string {
	name := strings.TrimSuffix(filepath.Base(fileName), schema.CSVExt)
	return strings.TrimSuffix(name, schema.StagingSuffix)
}

// Merge performs one staging to archive merge:
//  1. no staging file: no-op
//  2. no archive: the staging file is renamed to the archive
//  3. otherwise staging rows then archive rows are concatenated,
//     deduplicated, written over the archive, and the staging file is removed
func (m Merger) Merge(stagingPath, archivePath string, types map[string]schema.ColumnType) (schema.EntityOutcome, error) {
	outcome := schema.EntityOutcome{
		Entity:   EntityName(stagingPath),
		Action:   schema.ActionSkip,
		Recorded: time.Now().UTC(),
	}

	if _, err := os.Stat(stagingPath); errors.Is(err, os.ErrNotExist) {
		return outcome, nil
	} else if err != nil {
		return outcome, err
	}

	if _, err := os.Stat(archivePath); errors.Is(err, os.ErrNotExist) {
		// The staging file must read cleanly before it becomes the archive.
		staging, err := table.ReadCSVFile(stagingPath, types)
		if err != nil {
			return outcome, fmt.Errorf("failed to read staging file: %w", err)
		}
		if err := os.Rename(stagingPath, archivePath); err != nil {
			return outcome, fmt.Errorf("failed to promote staging file: %w", err)
		}
		outcome.Action = schema.ActionBootstrap
		outcome.RowsIn = staging.Len()
		outcome.RowsOut = staging.Len()
		return outcome, nil
	} else if err != nil {
		return outcome, err
	}

	staging, err := table.ReadCSVFile(stagingPath, types)
	if err != nil {
		return outcome, fmt.Errorf("failed to read staging file: %w", err)
	}
	archived, err := table.ReadCSVFile(archivePath, types)
	if err != nil {
		return outcome, fmt.Errorf("failed to read archive file: %w", err)
	}

	merged, err := Concat(staging, archived)
	if err != nil {
		return outcome, err
	}
	deduped, err := Dedup(merged, m.DedupKey)
	if err != nil {
		return outcome, err
	}

	if err := table.WriteCSVFile(archivePath, deduped); err != nil {
		return outcome, err
	}
	if err := os.Remove(stagingPath); err != nil {
		return outcome, fmt.Errorf("failed to remove staging file: %w", err)
	}

	outcome.Action = schema.ActionMerge
	outcome.RowsIn = staging.Len()
	outcome.RowsOut = deduped.Len()
	return outcome, nil
}

// Concat stacks first's rows above second's. The result header is first's
// header followed by columns only second has; missing cells are null.
func Concat(first, second *schema.Table) (*schema.Table, error) {
	columns := slices.Clone(first.Columns)
	for _, c := range second.Columns {
		if first.ColumnIndex(c.Name) < 0 {
			columns = append(columns, c)
		}
	}
	out := schema.NewTable(columns)

	for _, src := range []*schema.Table{first, second} {
		positions := make([]int, len(columns))
		for i, c := range columns {
			positions[i] = src.ColumnIndex(c.Name)
		}
		for _, row := range src.Rows {
			aligned := make(schema.Row, len(columns))
			for i, p := range positions {
				if p >= 0 {
					aligned[i] = row[p]
				}
			}
			if err := out.Append(aligned); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Dedup drops repeated rows keeping the first occurrence. With no key columns
// rows are compared in full; otherwise only the key columns are compared.
func Dedup(t *schema.Table, key []string) (*schema.Table, error) {
	positions := make([]int, 0, len(t.Columns))
	if len(key) == 0 {
		for i := range t.Columns {
			positions = append(positions, i)
		}
	} else {
		for _, k := range key {
			i := t.ColumnIndex(k)
			if i < 0 {
				return nil, fmt.Errorf("dedup key column %q not in header", k)
			}
			positions = append(positions, i)
		}
	}

	out := schema.NewTable(t.Columns)
	seen := make(map[string]struct{}, len(t.Rows))
	var b strings.Builder
	for _, row := range t.Rows {
		b.Reset()
		for _, p := range positions {
			if row[p] == nil {
				b.WriteByte(0)
			} else {
				b.WriteString(table.FormatValue(row[p]))
			}
			b.WriteByte(0x1f)
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// MergeDataset merges every staging file of one dataset directory. A missing
// directory is logged and skipped. A failing entity is logged, reported in its
// outcome and does not stop the others.
func (m Merger) MergeDataset(dataDir string, ds schema.Dataset) []schema.EntityOutcome {
	dir := DatasetDir(dataDir, ds)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.Warn("skipping missing data directory", "dataset", ds.Name, "dir", dir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(dir, stagingPattern))
	if err != nil {
		slog.Error("failed to list staging files", "dataset", ds.Name, "dir", dir, "err", err)
		return nil
	}
	slices.Sort(files)

	types := ds.ColumnTypes()
	outcomes := make([]schema.EntityOutcome, 0, len(files))
	for _, staging := range files {
		outcome, err := m.Merge(staging, ArchivePath(staging), types)
		outcome.Dataset = ds.Name
		if err != nil {
			slog.Error("merge failed", "dataset", ds.Name, "entity", outcome.Entity, "err", err)
			outcome.Error = err.Error()
		} else {
			slog.Debug("merged", "dataset", ds.Name, "entity", outcome.Entity, "action", outcome.Action, "rows", outcome.RowsOut)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// MergeAll merges every dataset of the layout in order. It stops between
// datasets once ctx is done and returns the outcomes gathered so far.
func (m Merger) MergeAll(ctx context.Context, dataDir string, layout Layout) ([]schema.EntityOutcome, error) {
	var outcomes []schema.EntityOutcome
	for _, ds := range layout.Datasets {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		slog.Info("merging data directory", "dataset", ds.Name, "dir", DatasetDir(dataDir, ds))
		outcomes = append(outcomes, m.MergeDataset(dataDir, ds)...)
	}
	return outcomes, nil
}

// DatasetDir resolves a dataset directory against the data directory.
func DatasetDir(dataDir string, ds schema.Dataset) string {
	if filepath.IsAbs(ds.Dir) {
		return ds.Dir
	}
	return filepath.Join(dataDir, ds.Dir)
}
