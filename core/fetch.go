package core

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/jenkins"
	"github.com/huangsam/pra/internal/metrics"
	"github.com/huangsam/pra/internal/outwriter"
	"github.com/huangsam/pra/internal/sonar"
	"github.com/huangsam/pra/internal/upstream"
	"github.com/huangsam/pra/schema"
)

// ExecuteSonarFetch writes one measures staging file per project of the
// configured organization.
func ExecuteSonarFetch(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	rec := newRecorder(cfg)
	defer flushMetrics(cfg, rec)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	src, err := newSonarSource(cfg, rec)
	if err != nil {
		return err
	}

	outcomes, err := runSonarFetch(ctx, cfg, mgr, rec, src, cat)
	outwriter.NewOutWriter().WriteOutcomes(os.Stdout, SonarFetchCommand, outcomes, cfg)
	return err
}

// ExecuteSonarCatalog writes the catalog file from the upstream metric definitions.
func ExecuteSonarCatalog(ctx context.Context, cfg *contract.Config) error {
	src, err := newSonarSource(cfg, nil)
	if err != nil {
		return err
	}
	n, err := sonar.WriteCatalog(ctx, src, cfg.CatalogPath)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d metrics to %s\n", n, cfg.CatalogPath)
	return nil
}

func newSonarSource(cfg *contract.Config, rec *metrics.Recorder) (*sonar.Client, error) {
	hc, err := upstream.New("sonar", cfg.SonarServer, cfg.RequestTimeout, cfg.MaxRetries, upstream.WithRecorder(rec))
	if err != nil {
		return nil, err
	}
	return sonar.NewClient(hc, cfg.SonarOrganization), nil
}

// runSonarFetch fetches every project in key order. A failing project is
// recorded and does not stop the others.
func runSonarFetch(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, rec *metrics.Recorder, src sonar.Source, cat *catalog.Catalog) ([]schema.EntityOutcome, error) {
	tracker := beginRun(mgr, rec, SonarFetchCommand, map[string]any{
		"server":       cfg.SonarServer,
		"organization": cfg.SonarOrganization,
		"catalog":      cfg.CatalogPath,
		"output_dir":   cfg.SonarOutputDir,
		"format":       string(cfg.Format),
		"load":         string(cfg.Load),
	})
	slog.Info("starting sonar fetch", "organization", cfg.SonarOrganization, "load", cfg.Load, "metrics", cat.Len())

	projects, err := src.Projects(ctx)
	if err != nil {
		tracker.finish(err)
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	slices.SortFunc(projects, func(a, b sonar.Project) int { return cmp.Compare(a.Key, b.Key) })

	fetcher := &sonar.Fetcher{Source: src, Catalog: cat, OutputDir: cfg.SonarOutputDir, Format: cfg.Format}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			tracker.finish(err)
			return tracker.outcomes, err
		}
		outcome, err := fetcher.FetchProject(ctx, p.Key)
		if err != nil {
			slog.Error("project fetch failed", "project", p.Key, "err", err)
			outcome.Error = err.Error()
		}
		tracker.record(outcome)
	}

	return tracker.outcomes, tracker.done()
}

// ExecuteJenkinsFetch writes builds and tests staging files for every job
// matching a project of the projects file.
func ExecuteJenkinsFetch(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	if cfg.ProjectsFile == "" {
		return &contract.ConfigError{Key: "projects-file", Err: fmt.Errorf("a projects file is required")}
	}
	projects, err := jenkins.ReadProjects(cfg.ProjectsFile)
	if err != nil {
		return err
	}

	rec := newRecorder(cfg)
	defer flushMetrics(cfg, rec)

	opts := []upstream.Option{upstream.WithRecorder(rec)}
	if cfg.JenkinsUser != "" {
		opts = append(opts, upstream.WithBasicAuth(cfg.JenkinsUser, cfg.JenkinsToken))
	}
	hc, err := upstream.New("jenkins", cfg.JenkinsServer, cfg.RequestTimeout, cfg.MaxRetries, opts...)
	if err != nil {
		return err
	}

	outcomes, err := runJenkinsFetch(ctx, cfg, mgr, rec, jenkins.NewClient(hc), projects)
	outwriter.NewOutWriter().WriteOutcomes(os.Stdout, JenkinsFetchCommand, outcomes, cfg)
	return err
}

// runJenkinsFetch resolves each project to its jobs and fetches every job
// once. A failing job is recorded and does not stop the others.
func runJenkinsFetch(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, rec *metrics.Recorder, src jenkins.Source, projects []string) ([]schema.EntityOutcome, error) {
	tracker := beginRun(mgr, rec, JenkinsFetchCommand, map[string]any{
		"server":     cfg.JenkinsServer,
		"projects":   projects,
		"output_dir": cfg.JenkinsOutputDir,
	})
	slog.Info("starting jenkins fetch", "server", cfg.JenkinsServer, "projects", len(projects))

	fetcher := &jenkins.Fetcher{Source: src, OutputDir: cfg.JenkinsOutputDir}
	seen := map[string]bool{}
	for _, project := range projects {
		refs, err := fetcher.Discover(ctx, project)
		if err != nil {
			tracker.finish(err)
			return tracker.outcomes, fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(refs) == 0 {
			slog.Warn("no jobs match project", "project", project)
			continue
		}

		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				tracker.finish(err)
				return tracker.outcomes, err
			}
			name := cmp.Or(ref.FullName, ref.Name)
			if seen[name] {
				continue
			}
			seen[name] = true

			outcomes, err := fetcher.FetchJob(ctx, ref)
			if err != nil {
				slog.Error("job fetch failed", "job", name, "err", err)
				tracker.record(schema.EntityOutcome{
					Dataset: jenkins.BuildsDataset,
					Entity:  name,
					Action:  schema.ActionFetch,
					Error:   err.Error(),
				})
				continue
			}
			for _, o := range outcomes {
				tracker.record(o)
			}
		}
	}

	return tracker.outcomes, tracker.done()
}
