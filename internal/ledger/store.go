package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/schema"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for run tracking.
const (
	RunsTable     = "pra_runs"
	OutcomesTable = "pra_entity_outcomes"
)

// sqliteTimeLayout is fixed width so that stored times sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id is unknown to the ledger.
var ErrRunNotFound = errors.New("run not found")

// Store implements contract.LedgerStore on top of database/sql.
type Store struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.LedgerStore = &Store{} // Compile-time check

// NewStore opens the ledger for the given backend and makes sure its tables
// exist. The none backend returns a store that records nothing.
func NewStore(backend schema.DatabaseBackend, connStr string) (*Store, error) {
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}
	if backend == schema.NoneBackend {
		return &Store{backend: backend}, nil
	}

	db, err := openDB(backend, driverName, connStr)
	if err != nil {
		return nil, err
	}

	if err := createTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return &Store{db: db, backend: backend}, nil
}

// driverFor maps a backend onto its registered database/sql driver.
func driverFor(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	case schema.NoneBackend:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported ledger backend: %s", backend)
	}
}

// openDB opens and pings a connection, adding a backend specific hint on failure.
func openDB(backend schema.DatabaseBackend, driverName, connStr string) (*sql.DB, error) {
	dsn := connStr
	if backend == schema.SQLiteBackend && dsn == "" {
		dsn = contract.GetLedgerDBFilePath()
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		switch backend {
		case schema.SQLiteBackend:
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dsn, err)
		case schema.MySQLBackend:
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		default:
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=... user=...", err)
		}
	}
	if backend == schema.SQLiteBackend {
		// A single connection avoids "database is locked" and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}
	return db, nil
}

// createTables creates the run and outcome tables when missing.
func createTables(db *sql.DB, backend schema.DatabaseBackend) error {
	for _, stmt := range createStatements(backend) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func createStatements(backend schema.DatabaseBackend) []string {
	runs := quoteTableName(RunsTable, backend)
	outcomes := quoteTableName(OutcomesTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) PRIMARY KEY,
				command VARCHAR(64) NOT NULL,
				started_at DATETIME(6) NOT NULL,
				ended_at DATETIME(6),
				run_duration_ms BIGINT,
				status VARCHAR(16) NOT NULL,
				entities_ok INT NOT NULL DEFAULT 0,
				entities_failed INT NOT NULL DEFAULT 0,
				params TEXT
			)`, runs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_id VARCHAR(36) NOT NULL,
				dataset VARCHAR(128) NOT NULL,
				entity VARCHAR(512) NOT NULL,
				action VARCHAR(16) NOT NULL,
				rows_in BIGINT NOT NULL,
				rows_out BIGINT NOT NULL,
				error_message TEXT,
				recorded_at DATETIME(6) NOT NULL,
				INDEX idx_pra_outcomes_run (run_id)
			)`, outcomes),
		}

	case schema.PostgreSQLBackend:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) PRIMARY KEY,
				command TEXT NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				ended_at TIMESTAMPTZ,
				run_duration_ms BIGINT,
				status TEXT NOT NULL,
				entities_ok INT NOT NULL DEFAULT 0,
				entities_failed INT NOT NULL DEFAULT 0,
				params TEXT
			)`, runs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				run_id VARCHAR(36) NOT NULL,
				dataset TEXT NOT NULL,
				entity TEXT NOT NULL,
				action TEXT NOT NULL,
				rows_in BIGINT NOT NULL,
				rows_out BIGINT NOT NULL,
				error_message TEXT,
				recorded_at TIMESTAMPTZ NOT NULL
			)`, outcomes),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_pra_outcomes_run ON %s (run_id)`, outcomes),
		}

	default: // SQLite
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				command TEXT NOT NULL,
				started_at TEXT NOT NULL,
				ended_at TEXT,
				run_duration_ms INTEGER,
				status TEXT NOT NULL,
				entities_ok INTEGER NOT NULL DEFAULT 0,
				entities_failed INTEGER NOT NULL DEFAULT 0,
				params TEXT
			)`, runs),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				dataset TEXT NOT NULL,
				entity TEXT NOT NULL,
				action TEXT NOT NULL,
				rows_in INTEGER NOT NULL,
				rows_out INTEGER NOT NULL,
				error_message TEXT,
				recorded_at TEXT NOT NULL
			)`, outcomes),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_pra_outcomes_run ON %s (run_id)`, outcomes),
		}
	}
}

// Backend returns the configured backend.
func (s *Store) Backend() schema.DatabaseBackend {
	return s.backend
}

func (s *Store) disabled() bool {
	return s.backend == schema.NoneBackend || s.db == nil
}

// BeginRun inserts a running run and returns its id.
func (s *Store) BeginRun(command string, startTime time.Time, params map[string]any) (string, error) {
	if s.disabled() {
		return "", nil
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run params: %w", err)
	}

	runID := uuid.NewString()
	query := s.rebind(fmt.Sprintf(
		`INSERT INTO %s (run_id, command, started_at, status, entities_ok, entities_failed, params) VALUES (?, ?, ?, ?, 0, 0, ?)`,
		quoteTableName(RunsTable, s.backend)))
	if _, err := s.db.Exec(query, runID, command, s.formatTime(startTime), string(schema.RunRunning), string(paramsJSON)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordEntity stores one entity outcome under the given run.
func (s *Store) RecordEntity(runID string, outcome schema.EntityOutcome) error {
	if s.disabled() {
		return nil
	}

	recorded := outcome.Recorded
	if recorded.IsZero() {
		recorded = time.Now()
	}
	var errText *string
	if outcome.Error != "" {
		errText = &outcome.Error
	}

	query := s.rebind(fmt.Sprintf(
		`INSERT INTO %s (run_id, dataset, entity, action, rows_in, rows_out, error_message, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		quoteTableName(OutcomesTable, s.backend)))
	_, err := s.db.Exec(query, runID, outcome.Dataset, outcome.Entity, string(outcome.Action),
		outcome.RowsIn, outcome.RowsOut, errText, s.formatTime(recorded))
	if err != nil {
		return fmt.Errorf("failed to insert entity outcome: %w", err)
	}
	return nil
}

// EndRun closes a run with its status and counters.
func (s *Store) EndRun(runID string, endTime time.Time, status schema.RunStatus, ok, failed int) error {
	if s.disabled() {
		return nil
	}

	runs := quoteTableName(RunsTable, s.backend)
	var started dbTime
	row := s.db.QueryRow(s.rebind(fmt.Sprintf(`SELECT started_at FROM %s WHERE run_id = ?`, runs)), runID)
	if err := row.Scan(&started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("failed to get started_at for run %s: %w", runID, err)
	}

	durationMs := endTime.Sub(started.Time).Milliseconds()
	query := s.rebind(fmt.Sprintf(
		`UPDATE %s SET ended_at = ?, run_duration_ms = ?, status = ?, entities_ok = ?, entities_failed = ? WHERE run_id = ?`, runs))
	if _, err := s.db.Exec(query, s.formatTime(endTime), durationMs, string(status), ok, failed, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetStatus summarizes the ledger contents.
func (s *Store) GetStatus() (schema.LedgerStatus, error) {
	status := schema.LedgerStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}

	runs := quoteTableName(RunsTable, s.backend)
	outcomes := quoteTableName(OutcomesTable, s.backend)

	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var last, oldest dbTime
		row := s.db.QueryRow(fmt.Sprintf("SELECT run_id, started_at FROM %s ORDER BY started_at DESC, run_id DESC LIMIT 1", runs))
		if err := row.Scan(&status.LastRunID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = last.Time

		row = s.db.QueryRow(fmt.Sprintf("SELECT started_at FROM %s ORDER BY started_at ASC LIMIT 1", runs))
		if err := row.Scan(&oldest); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest.Time
	}

	row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE error_message IS NOT NULL", outcomes))
	if err := row.Scan(&status.FailedEntities); err != nil {
		return status, fmt.Errorf("failed to get failed entities: %w", err)
	}

	for _, table := range []string{RunsTable, OutcomesTable} {
		var count int64
		row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// ListRuns returns runs newest first. A non-positive limit returns every run.
func (s *Store) ListRuns(limit int) ([]schema.RunRecord, error) {
	if s.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, command, started_at, ended_at, status, entities_ok, entities_failed, params
		FROM %s ORDER BY started_at DESC, run_id DESC`, quoteTableName(RunsTable, s.backend))
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var (
			record         schema.RunRecord
			started, ended dbTime
			status         string
		)
		if err := rows.Scan(&record.RunID, &record.Command, &started, &ended, &status,
			&record.EntitiesOK, &record.EntitiesFailed, &record.Params); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.StartedAt = started.Time
		record.Status = schema.RunStatus(status)
		if ended.Valid {
			t := ended.Time
			record.EndedAt = &t
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// ListOutcomes returns outcomes in recording order. An empty run id returns
// the outcomes of every run.
func (s *Store) ListOutcomes(runID string) ([]schema.EntityOutcome, error) {
	if s.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, dataset, entity, action, rows_in, rows_out, error_message, recorded_at FROM %s`,
		quoteTableName(OutcomesTable, s.backend))
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query = s.rebind(query + " ORDER BY id")

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.EntityOutcome
	for rows.Next() {
		var (
			outcome  schema.EntityOutcome
			action   string
			errText  *string
			recorded dbTime
		)
		if err := rows.Scan(&outcome.RunID, &outcome.Dataset, &outcome.Entity, &action,
			&outcome.RowsIn, &outcome.RowsOut, &errText, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan entity outcome: %w", err)
		}
		outcome.Action = schema.EntityAction(action)
		if errText != nil {
			outcome.Error = *errText
		}
		outcome.Recorded = recorded.Time
		results = append(results, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity outcomes: %w", err)
	}
	return results, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// formatTime converts a time to the column representation of the backend.
func (s *Store) formatTime(t time.Time) any {
	if s.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dbTime scans the time columns of every backend: native times from
// PostgreSQL, text from SQLite and bytes from MySQL without parseTime.
type dbTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// validateTableName checks that a table name is a plain SQL identifier.
func validateTableName(name string) error {
	if name == "" || len(name) > 64 {
		return fmt.Errorf("invalid table name length: %q", name)
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("invalid character %q in table name %q", r, name)
		}
	}
	return nil
}

// quoteTableName quotes an identifier for the backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	if backend == schema.MySQLBackend {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
