package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	revitWorker = "revit_worker"

	// Job metrics
	jobRunsTotal = "job_runs_total"

	// Export metrics
	sheetExportsTotal     = "sheet_exports_total"
	exportDurationSeconds = "export_duration_seconds"

	// Labels
	statusLabel = "status"
	formatLabel = "format"
)

var jobRunsTotalLabels = []string{
	statusLabel,
}

var sheetExportsTotalLabels = []string{
	formatLabel,
	statusLabel,
}

var exportDurationLabels = []string{
	formatLabel,
}

/**
* Metrics definition
**/
var jobRunsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: revitWorker,
		Name:      jobRunsTotal,
		Help:      "number of processed jobs by final status",
	},
	jobRunsTotalLabels,
)

var sheetExportsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: revitWorker,
		Name:      sheetExportsTotal,
		Help:      "number of per-format sheet exports by outcome",
	},
	sheetExportsTotalLabels,
)

var exportDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: revitWorker,
		Name:      exportDurationSeconds,
		Help:      "duration of per-format sheet exports",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
	},
	exportDurationLabels,
)

func RecordJobRun(status string) {
	labels := prometheus.Labels{
		statusLabel: status,
	}
	jobRunsTotalMetric.With(labels).Inc()
}

func RecordSheetExport(format, status string, durationSeconds float64) {
	sheetExportsTotalMetric.With(prometheus.Labels{
		formatLabel: format,
		statusLabel: status,
	}).Inc()
	exportDurationSecondsMetric.With(prometheus.Labels{
		formatLabel: format,
	}).Observe(durationSeconds)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobRunsTotalMetric)
	prometheus.MustRegister(sheetExportsTotalMetric)
	prometheus.MustRegister(exportDurationSecondsMetric)
}
