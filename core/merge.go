package core

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/huangsam/pra/internal/archive"
	"github.com/huangsam/pra/internal/catalog"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/outwriter"
	"github.com/huangsam/pra/schema"
)

// ExecuteMerge merges every staging file of every dataset into its archive.
func ExecuteMerge(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	outcomes, err := RunMerge(ctx, cfg, mgr)
	outwriter.NewOutWriter().WriteOutcomes(os.Stdout, MergeCommand, outcomes, cfg)
	return err
}

// RunMerge performs the merge pass and returns the outcome of every entity.
// A failing entity is recorded and does not stop the others.
func RunMerge(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) ([]schema.EntityOutcome, error) {
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	layout, err := ResolveLayout(cfg)
	if err != nil {
		return nil, err
	}

	rec := newRecorder(cfg)
	defer flushMetrics(cfg, rec)

	tracker := beginRun(mgr, rec, MergeCommand, map[string]any{
		"data_dir":  dataDir,
		"layout":    cfg.LayoutFile,
		"dedup_key": strings.Join(cfg.DedupKey, ","),
	})

	merger := archive.Merger{DedupKey: cfg.DedupKey}
	outcomes, err := merger.MergeAll(ctx, dataDir, layout)
	for _, outcome := range outcomes {
		tracker.record(outcome)
	}
	if err != nil {
		tracker.finish(err)
		return tracker.outcomes, err
	}
	return tracker.outcomes, tracker.done()
}

// ResolveLayout returns the configured dataset layout. The measures schema is
// extended with the catalog columns when the catalog file can be read.
func ResolveLayout(cfg *contract.Config) (archive.Layout, error) {
	layout := archive.DefaultLayout()
	if cfg.LayoutFile != "" {
		var err error
		if layout, err = archive.LoadLayout(cfg.LayoutFile); err != nil {
			return archive.Layout{}, &contract.ConfigError{Key: "layout", Err: err}
		}
	}

	if cfg.CatalogPath == "" {
		return layout, nil
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Debug("catalog not loaded, measures columns are read as text", "catalog", cfg.CatalogPath, "err", err)
		return layout, nil
	}
	return layout.WithCatalog(cat), nil
}

// CollectStatus reports the on-disk state of the configured datasets.
func CollectStatus(cfg *contract.Config, datasets ...string) ([]schema.DatasetStatus, error) {
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	layout, err := ResolveLayout(cfg)
	if err != nil {
		return nil, err
	}
	if layout, err = layout.Select(datasets...); err != nil {
		return nil, err
	}
	return archive.Status(dataDir, layout), nil
}

// ExecuteStatus prints the archive status in the configured output format.
func ExecuteStatus(_ context.Context, cfg *contract.Config) error {
	statuses, err := CollectStatus(cfg)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteArchiveStatus(statuses, cfg)
}
