package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventrecon"

var (
	TimelineEventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_events_ingested_total",
			Help:      "Total number of low-level timeline events ingested",
		},
		[]string{"format"},
	)

	HighLevelEventsReconstructed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "high_level_events_reconstructed_total",
			Help:      "Total number of high-level events reconstructed, before merging",
		},
		[]string{"rule_id"},
	)

	HighLevelEventsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "high_level_events_merged_total",
			Help:      "Total number of duplicate high-level events folded into an earlier one",
		},
	)

	IssuesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_recorded_total",
			Help:      "Total number of recovered errors by kind",
		},
		[]string{"kind"},
	)

	ExtractorInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_invocations_total",
			Help:      "Total number of key extractor invocations",
		},
		// result is "value", "absent" or "error"
		[]string{"extractor", "result"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time taken by a complete analysis run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	TimelineRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_records_skipped_total",
			Help:      "Total number of timeline records that could not be decoded",
		},
		[]string{"format"},
	)

	OutputEventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_events_written_total",
			Help:      "Total number of high-level events written",
		},
		[]string{"format"},
	)
)

// RecordIngested records events read from a timeline file.
func RecordIngested(format string, n int) {
	TimelineEventsIngested.WithLabelValues(format).Add(float64(n))
}

// RecordSkipped records timeline records dropped during ingestion.
func RecordSkipped(format string, n int) {
	TimelineRecordsSkipped.WithLabelValues(format).Add(float64(n))
}

// RecordWritten records high-level events written to the output.
func RecordWritten(format string, n int) {
	OutputEventsWritten.WithLabelValues(format).Add(float64(n))
}

// RecordExtraction records one extractor invocation outcome.
func RecordExtraction(extractor string, ok bool, err error) {
	result := "absent"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "value"
	}
	ExtractorInvocations.WithLabelValues(extractor, result).Inc()
}

// RecordIssues adds per-kind issue counts.
func RecordIssues[K ~string](counts map[K]int) {
	for kind, n := range counts {
		IssuesRecorded.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// WriteTextfile dumps every registered metric to path in the Prometheus text
// format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
