package core

import (
	"context"
	"fmt"
	"os"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/ledger"
	"github.com/huangsam/pra/internal/outwriter"
	"github.com/huangsam/pra/schema"
)

// ExecuteLedgerStatus prints ledger totals.
func ExecuteLedgerStatus(_ context.Context, _ *contract.Config, mgr contract.StoreManager) error {
	status, err := mgr.GetLedgerStore().GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get ledger status: %w", err)
	}
	outwriter.NewOutWriter().WriteLedgerStatus(os.Stdout, status)
	return nil
}

// ExecuteLedgerRuns prints the most recent runs.
func ExecuteLedgerRuns(_ context.Context, cfg *contract.Config, mgr contract.StoreManager, limit int) error {
	runs, err := mgr.GetLedgerStore().ListRuns(limit)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteRuns(runs, cfg)
}

// ExecuteLedgerExport writes the ledger to Parquet files.
func ExecuteLedgerExport(_ context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	store := mgr.GetLedgerStore()
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get ledger status: %w", err)
	}
	fmt.Printf("Exporting data from %s backend...\n", status.Backend)

	result, err := ledger.Export(store, cfg.OutputFile)
	if err != nil {
		return err
	}
	outwriter.NewOutWriter().WriteExport(os.Stdout, result)
	return nil
}

// ExecuteLedgerClear removes all ledger data of the configured backend.
func ExecuteLedgerClear(_ context.Context, cfg *contract.Config) error {
	dbFilePath := ""
	if cfg.LedgerBackend == schema.SQLiteBackend {
		dbFilePath = cfg.LedgerDBConnect
		if dbFilePath == "" {
			dbFilePath = contract.GetLedgerDBFilePath()
		}
	}
	if err := ledger.Clear(cfg.LedgerBackend, dbFilePath, cfg.LedgerDBConnect); err != nil {
		return err
	}
	fmt.Printf("Cleared %s ledger\n", cfg.LedgerBackend)
	return nil
}

// ExecuteLedgerMigrate runs schema migrations up to targetVersion; a negative
// target migrates to the latest version.
func ExecuteLedgerMigrate(_ context.Context, cfg *contract.Config, targetVersion int) error {
	result, err := ledger.Migrate(cfg.LedgerBackend, cfg.LedgerDBConnect, targetVersion)
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Printf("No migration needed. Database is already at version %d\n", result.To)
		return nil
	}
	fmt.Printf("Successfully migrated from version %d to version %d\n", result.From, result.To)
	return nil
}
