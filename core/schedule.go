package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/huangsam/pra/internal/contract"
	"github.com/robfig/cron/v3"
)

// pipelineStep is one command of a scheduled run.
type pipelineStep struct {
	name string
	run  ExecutorFunc
}

// schedulePipeline returns the steps a scheduled run performs: sonar fetch
// when a catalog is present, jenkins fetch when a projects file is set, then
// merge when a data directory is known.
func schedulePipeline(cfg *contract.Config) []pipelineStep {
	var steps []pipelineStep
	if _, err := os.Stat(cfg.CatalogPath); err == nil {
		steps = append(steps, pipelineStep{SonarFetchCommand, ExecuteSonarFetch})
	}
	if cfg.ProjectsFile != "" {
		steps = append(steps, pipelineStep{JenkinsFetchCommand, ExecuteJenkinsFetch})
	}
	if cfg.DataDir != "" {
		steps = append(steps, pipelineStep{MergeCommand, ExecuteMerge})
	}
	return steps
}

// ExecuteSchedule runs the pipeline on the configured cron schedule until ctx
// is canceled. A run still in progress when the next one is due is skipped.
func ExecuteSchedule(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	steps := schedulePipeline(cfg)
	if len(steps) == 0 {
		return &contract.ConfigError{Key: "cron", Err: fmt.Errorf("nothing to schedule: configure a catalog, a projects file or a data directory")}
	}
	return runSchedule(ctx, cfg, mgr, steps)
}

func runSchedule(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, steps []pipelineStep) error {
	if cfg.CronSpec == "" {
		return &contract.ConfigError{Key: "cron", Err: fmt.Errorf("a cron spec is required")}
	}

	logger := cronLogger{slog.Default()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(cfg.CronSpec, func() { runPipeline(ctx, cfg, mgr, steps) }); err != nil {
		return &contract.ConfigError{Key: "cron", Err: err}
	}

	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.name)
	}
	slog.Info("scheduler started", "cron", cfg.CronSpec, "steps", names)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
	return nil
}

// runPipeline runs every step in order. A failing step is logged and does
// not stop the later ones.
func runPipeline(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, steps []pipelineStep) {
	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		slog.Info("scheduled step", "step", step.name)
		if err := step.run(ctx, cfg, mgr); err != nil {
			slog.Error("scheduled step failed", "step", step.name, "err", err)
		}
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
