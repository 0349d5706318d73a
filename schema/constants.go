package schema

import "strings"

// Custom string types for type safety.
type (
	// MetricType is the declared value type of a catalog metric.
	MetricType string

	// ColumnType is the storage type of a table column.
	ColumnType string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the run ledger.
	DatabaseBackend string

	// LoadMode represents the requested fetch mode for the metrics source.
	LoadMode string

	// DatasetKind identifies which producer owns a data directory.
	DatasetKind string

	// EntityAction describes what happened to one entity during a run.
	EntityAction string

	// RunStatus is the terminal status of a ledger run.
	RunStatus string
)

// All metric types known to the catalog.
const (
	MetricInt      MetricType = "INT"
	MetricFloat    MetricType = "FLOAT"
	MetricPercent  MetricType = "PERCENT"
	MetricRating   MetricType = "RATING"
	MetricBool     MetricType = "BOOL"
	MetricMillisec MetricType = "MILLISEC"
	MetricString   MetricType = "STRING"
	MetricWorkDur  MetricType = "WORK_DUR"
)

// All column types supported by table I/O.
const (
	StringColumn    ColumnType = "string" // default
	IntColumn       ColumnType = "int"
	FloatColumn     ColumnType = "float"
	BoolColumn      ColumnType = "bool"
	TimestampColumn ColumnType = "timestamp"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default for status
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All ledger backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All load modes accepted by the metrics fetch.
const (
	FirstLoad       LoadMode = "first"
	IncrementalLoad LoadMode = "incremental" // default
)

// All dataset kinds.
const (
	SonarMeasuresKind DatasetKind = "sonar_measures"
	JenkinsBuildsKind DatasetKind = "jenkins_builds"
	JenkinsTestsKind  DatasetKind = "jenkins_tests"
)

// All entity actions recorded in the ledger.
const (
	ActionFetch     EntityAction = "fetch"
	ActionBootstrap EntityAction = "bootstrap"
	ActionMerge     EntityAction = "merge"
	ActionSkip      EntityAction = "skip"
)

// All run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// File naming and paging conventions shared by producers and the merger.
const (
	StagingSuffix     = "_staging"
	CSVExt            = ".csv"
	ParquetExt        = ".parquet"
	PageSize          = 200
	MeasuresBatchSize = 15
)

// ValidOutputModes lists all valid output modes for status reports.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidFetchFormats lists the table formats a fetch can write.
var ValidFetchFormats = map[OutputMode]struct{}{
	CSVOut:     {},
	ParquetOut: {},
}

// ValidLedgerBackends lists all valid ledger backends.
var ValidLedgerBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidLoadModes lists all valid load modes.
var ValidLoadModes = map[LoadMode]struct{}{
	FirstLoad:       {},
	IncrementalLoad: {},
}

// ValidColumnTypes lists all valid column types.
var ValidColumnTypes = map[ColumnType]struct{}{
	StringColumn:    {},
	IntColumn:       {},
	FloatColumn:     {},
	BoolColumn:      {},
	TimestampColumn: {},
}

// ParseMetricType maps an upstream metric type onto the closed enumeration.
// Types the archive has no dedicated handling for (DATA, DISTRIB, LEVEL, ...)
// are stored as strings.
func ParseMetricType(raw string) MetricType {
	switch t := MetricType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case MetricInt, MetricFloat, MetricPercent, MetricRating,
		MetricBool, MetricMillisec, MetricString, MetricWorkDur:
		return t
	default:
		return MetricString
	}
}

// ColumnType returns the storage type used for values of this metric type.
func (m MetricType) ColumnType() ColumnType {
	switch m {
	case MetricInt, MetricWorkDur:
		return IntColumn
	case MetricFloat, MetricPercent, MetricRating:
		return FloatColumn
	case MetricBool:
		return BoolColumn
	case MetricMillisec:
		return TimestampColumn
	default:
		return StringColumn
	}
}
