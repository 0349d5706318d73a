package schema

import "time"

// ArchiveStatus describes the on-disk state of one entity in one dataset.
type ArchiveStatus struct {
	Dataset      string    `json:"dataset"`
	Entity       string    `json:"entity"`
	ArchiveRows  int       `json:"archive_rows"`
	ArchiveBytes int64     `json:"archive_bytes"`
	Pending      bool      `json:"pending"`
	StagingRows  int       `json:"staging_rows"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// DatasetStatus groups archive statuses per dataset.
type DatasetStatus struct {
	Dataset  string          `json:"dataset"`
	Dir      string          `json:"dir"`
	Exists   bool            `json:"exists"`
	Entities []ArchiveStatus `json:"entities"`
}

// LedgerStatus represents the status of the run ledger.
type LedgerStatus struct {
	Backend        string           `json:"backend"`
	Connected      bool             `json:"connected"`
	TotalRuns      int              `json:"total_runs"`
	LastRunID      string           `json:"last_run_id"`
	LastRunTime    time.Time        `json:"last_run_time"`
	OldestRunTime  time.Time        `json:"oldest_run_time"`
	FailedEntities int              `json:"failed_entities"`
	TableSizes     map[string]int64 `json:"table_sizes"`
}
