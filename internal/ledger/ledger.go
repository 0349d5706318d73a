// Package ledger records runs and per-entity outcomes in a SQL database.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/schema"
)

// StoreManager holds the process-wide ledger store.
type StoreManager struct {
	sync.RWMutex
	store contract.LedgerStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// GetLedgerStore returns the configured store, or a store that records
// nothing when the ledger was never initialized.
func (mgr *StoreManager) GetLedgerStore() contract.LedgerStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.store == nil {
		return &Store{backend: schema.NoneBackend}
	}
	return mgr.store
}

// Init opens the global ledger store once.
func Init(backend schema.DatabaseBackend, connStr string) error {
	var initErr error
	initOnce.Do(func() {
		store, err := NewStore(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize run ledger: %w", err)
			return
		}
		Manager.Lock()
		Manager.store = store
		Manager.Unlock()
	})
	return initErr
}

// Close should be called on application shutdown.
func Close() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}

// Clear removes all ledger data. SQLite deletes the database file, MySQL and
// PostgreSQL drop the ledger tables and the migration version table, and the
// none backend does nothing.
func Clear(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		driverName, _ := driverFor(backend)
		for _, table := range []string{OutcomesTable, RunsTable, MigrationsTable} {
			if err := dropTable(driverName, connStr, table, backend); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported ledger backend for clearing: %s", backend)
	}
}

// dropTable connects to the SQL database and drops the table if it exists.
func dropTable(driverName, connStr, table string, backend schema.DatabaseBackend) error {
	if err := validateTableName(table); err != nil {
		return err
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}
	if _, err := db.Exec("DROP TABLE IF EXISTS " + quoteTableName(table, backend)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
