// Package metrics collects per-run Prometheus counters and writes them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for upstream requests and entities.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Recorder holds the counters of one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	entities         *prometheus.CounterVec
	archiveRows      *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pra_upstream_requests_total",
			Help: "Upstream HTTP requests by source and outcome.",
		}, []string{"source", "outcome"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pra_upstream_retries_total",
			Help: "Upstream HTTP requests that were retried.",
		}, []string{"source"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pra_entities_total",
			Help: "Processed entities by command and outcome.",
		}, []string{"command", "outcome"}),
		archiveRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pra_archive_rows_total",
			Help: "Rows written to archive files by dataset.",
		}, []string{"dataset"}),
	}
	r.registry.MustRegister(r.upstreamRequests, r.upstreamRetries, r.entities, r.archiveRows)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRequest counts one finished upstream request.
func (r *Recorder) ObserveRequest(source, outcome string) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(source, outcome).Inc()
}

// ObserveRetry counts one retried upstream request.
func (r *Recorder) ObserveRetry(source string) {
	if r == nil {
		return
	}
	r.upstreamRetries.WithLabelValues(source).Inc()
}

// ObserveEntity counts one processed entity.
func (r *Recorder) ObserveEntity(command, outcome string) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(command, outcome).Inc()
}

// AddArchiveRows adds n written archive rows for a dataset.
func (r *Recorder) AddArchiveRows(dataset string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.archiveRows.WithLabelValues(dataset).Add(float64(n))
}

// WriteTextfile writes all counters to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
