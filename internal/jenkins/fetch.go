package jenkins

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/table"
	"github.com/huangsam/pra/schema"
)

// Dataset names of the two job tables.
const (
	BuildsDataset = string(schema.JenkinsBuildsKind)
	TestsDataset  = string(schema.JenkinsTestsKind)
)

// ReadProjects reads one project name per line, skipping blank lines.
func ReadProjects(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open projects file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var projects []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			projects = append(projects, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}
	return projects, nil
}

// Fetcher produces per-job staging tables for builds and tests.
type Fetcher struct {
	Source    Source
	OutputDir string

	jobs []JobRef // listing cached for the lifetime of the fetcher
}

// StagingPath returns <OutputDir>/<dataset>/<job>_staging.csv.
func (f *Fetcher) StagingPath(dataset, job string) string {
	return filepath.Join(f.OutputDir, dataset, contract.SanitizeEntity(job)+schema.StagingSuffix+schema.CSVExt)
}

// Discover returns the jobs matching a project name. The server listing is
// fetched once.
func (f *Fetcher) Discover(ctx context.Context, project string) ([]JobRef, error) {
	if f.jobs == nil {
		jobs, err := f.Source.Jobs(ctx)
		if err != nil {
			return nil, err
		}
		f.jobs = jobs
	}
	return MatchJobs(f.jobs, project), nil
}

// FetchJob collects one job and writes its builds and tests staging files.
// It returns one outcome per dataset, or a single skip outcome.
func (f *Fetcher) FetchJob(ctx context.Context, ref JobRef) ([]schema.EntityOutcome, error) {
	name := ref.FullName
	if name == "" {
		name = ref.Name
	}
	now := time.Now().UTC()
	skip := []schema.EntityOutcome{{Dataset: BuildsDataset, Entity: name, Action: schema.ActionSkip, Recorded: now}}

	job, err := f.Source.JobInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("job info of %s: %w", name, err)
	}
	if reason := SkipReason(job); reason != "" {
		slog.Info("skipping job", "job", name, "reason", reason)
		return skip, nil
	}
	if len(job.Builds) == 0 {
		slog.Info("job has no builds", "job", name)
		return skip, nil
	}

	builds := schema.NewTable(BuildColumns)
	tests := schema.NewTable(TestColumns)
	for _, b := range job.Builds {
		number, ok := BuildNumber(b)
		if !ok {
			slog.Warn("build without number", "job", name, "id", b.ID)
			continue
		}

		report, err := f.Source.TestReport(ctx, name, number)
		if err != nil {
			// Absence: the build row is still written with null test columns.
			slog.Warn("test report unavailable", "job", name, "build", number, "err", err)
			report = nil
		}

		if err := builds.Append(BuildRow(name, b, report)); err != nil {
			return nil, err
		}
		for _, row := range TestRows(name, number, report) {
			if err := tests.Append(row); err != nil {
				return nil, err
			}
		}
	}

	outcomes := []schema.EntityOutcome{
		{Dataset: BuildsDataset, Entity: name, Action: schema.ActionFetch, RowsIn: len(job.Builds), RowsOut: builds.Len(), Recorded: now},
		{Dataset: TestsDataset, Entity: name, Action: schema.ActionFetch, RowsIn: len(job.Builds), RowsOut: tests.Len(), Recorded: now},
	}
	if err := table.WriteCSVFile(f.StagingPath(BuildsDataset, name), builds); err != nil {
		return nil, fmt.Errorf("failed to write builds staging file: %w", err)
	}
	if tests.Len() == 0 {
		outcomes[1].Action = schema.ActionSkip
		return outcomes, nil
	}
	if err := table.WriteCSVFile(f.StagingPath(TestsDataset, name), tests); err != nil {
		return nil, fmt.Errorf("failed to write tests staging file: %w", err)
	}
	return outcomes, nil
}
