package schema

import "time"

// RunRecord represents a row from the pra_runs table.
type RunRecord struct {
	RunID          string     `json:"run_id"`
	Command        string     `json:"command"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Status         RunStatus  `json:"status"`
	EntitiesOK     int32      `json:"entities_ok"`
	EntitiesFailed int32      `json:"entities_failed"`
	Params         *string    `json:"params,omitempty"`
}

// EntityOutcome is the result of processing one entity within a run.
// It is returned by producers and the merger and stored in pra_entity_outcomes.
type EntityOutcome struct {
	RunID    string       `json:"run_id,omitempty"`
	Dataset  string       `json:"dataset"`
	Entity   string       `json:"entity"`
	Action   EntityAction `json:"action"`
	RowsIn   int          `json:"rows_in"`
	RowsOut  int          `json:"rows_out"`
	Error    string       `json:"error,omitempty"`
	Recorded time.Time    `json:"recorded"`
}

// Failed reports whether the outcome carries an error.
func (o EntityOutcome) Failed() bool {
	return o.Error != ""
}
