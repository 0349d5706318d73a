package sonar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/parquet"
	"github.com/huangsam/pra/internal/table"
	"github.com/huangsam/pra/schema"
)

// Dataset is the dataset name of measures tables.
const Dataset = string(schema.SonarMeasuresKind)

// Fetcher produces one staging table per project.
type Fetcher struct {
	Source    Source
	Catalog   *catalog.Catalog
	OutputDir string
	Format    schema.OutputMode // CSVOut or ParquetOut
}

// StagingPath returns <OutputDir>/<format>/<project>_staging.<format>.
func (f *Fetcher) StagingPath(projectKey string) string {
	name := contract.SanitizeEntity(projectKey) + schema.StagingSuffix + "." + string(f.Format)
	return filepath.Join(f.OutputDir, string(f.Format), name)
}

// FetchProject collects analyses and measures of a project and writes its
// staging file. A project without analyses is skipped and writes nothing.
func (f *Fetcher) FetchProject(ctx context.Context, projectKey string) (schema.EntityOutcome, error) {
	outcome := schema.EntityOutcome{
		Dataset:  Dataset,
		Entity:   projectKey,
		Action:   schema.ActionFetch,
		Recorded: time.Now().UTC(),
	}

	analyses, err := f.Source.Analyses(ctx, projectKey)
	if err != nil {
		return outcome, fmt.Errorf("analyses of %s: %w", projectKey, err)
	}
	slog.Info("fetched analyses", "project", projectKey, "analyses", len(analyses))
	if len(analyses) == 0 {
		outcome.Action = schema.ActionSkip
		return outcome, nil
	}
	outcome.RowsIn = len(analyses)

	measures, err := FetchMeasures(ctx, f.Source, projectKey, f.Catalog)
	if err != nil {
		return outcome, fmt.Errorf("measures of %s: %w", projectKey, err)
	}

	t, err := table.Assemble(Records(projectKey, analyses, measures), f.Catalog, LeadingColumns)
	if err != nil {
		return outcome, err
	}

	path := f.StagingPath(projectKey)
	switch f.Format {
	case schema.ParquetOut:
		err = parquet.WriteTable(path, t)
	default:
		err = table.WriteCSVFile(path, t)
	}
	if err != nil {
		return outcome, fmt.Errorf("failed to write staging file: %w", err)
	}
	outcome.RowsOut = t.Len()
	slog.Debug("wrote staging file", "project", projectKey, "path", path, "rows", t.Len())
	return outcome, nil
}

// WriteCatalog fetches the metric definitions and stores them as a catalog file.
func WriteCatalog(ctx context.Context, src Source, path string) (int, error) {
	metrics, err := src.Metrics(ctx)
	if err != nil {
		return 0, err
	}
	if err := catalog.Write(path, metrics); err != nil {
		return 0, err
	}
	return len(metrics), nil
}
