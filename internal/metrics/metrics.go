// Package metrics exposes Prometheus collectors for compliance runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeRuleError    = "rule_error"
	OutcomePersistError = "persist_error"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// Metrics tracks run counts, findings, durations and limiter occupancy.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	FindingsTotal   *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	DatasetsParsed  *prometheus.CounterVec
	DatasetRows     prometheus.Histogram
	ActiveRuns      prometheus.Gauge
	DefinitionLoads *prometheus.CounterVec
}

// New registers all collectors with reg. A nil reg uses the default
// registry, which may only happen once per process.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sdtm_compliance_runs_total",
			Help: "Compliance runs by standard and outcome",
		}, []string{"standard", "outcome"}),
		FindingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sdtm_findings_total",
			Help: "Findings produced by standard and severity",
		}, []string{"standard", "severity"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sdtm_run_duration_seconds",
			Help:    "Wall time of a compliance run including parsing and persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"standard"}),
		DatasetsParsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sdtm_datasets_parsed_total",
			Help: "Uploaded datasets by format",
		}, []string{"format"}),
		DatasetRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sdtm_dataset_rows",
			Help:    "Row count of parsed datasets",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdtm_active_runs",
			Help: "Runs currently holding a limiter slot",
		}),
		DefinitionLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sdtm_definition_loads_total",
			Help: "Standard definition loads by result",
		}, []string{"standard", "result"}),
	}
}

// ObserveRun records a finished run. summary may be nil for failed runs.
func (m *Metrics) ObserveRun(standardID, outcome string, summary *core.RunSummary, start time.Time) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(standardID, outcome).Inc()
	m.RunDuration.WithLabelValues(standardID).Observe(time.Since(start).Seconds())
	if summary == nil {
		return
	}
	for _, f := range summary.Findings {
		m.FindingsTotal.WithLabelValues(standardID, string(f.Severity)).Inc()
	}
}

// ObserveDataset records one parsed upload.
func (m *Metrics) ObserveDataset(ds *core.ParsedDataset) {
	if m == nil || ds == nil {
		return
	}
	m.DatasetsParsed.WithLabelValues(ds.Format()).Inc()
	m.DatasetRows.Observe(float64(ds.RowCount()))
}

// ObserveDefinitionLoad records a standard definition lookup.
func (m *Metrics) ObserveDefinitionLoad(standardID string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DefinitionLoads.WithLabelValues(standardID, result).Inc()
}

// RunStarted and RunFinished track limiter occupancy.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.ActiveRuns.Inc()
	}
}

func (m *Metrics) RunFinished() {
	if m != nil {
		m.ActiveRuns.Dec()
	}
}
