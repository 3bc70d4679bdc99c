package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection-side metrics: rule loading, rule evaluation and regex keyword
// matching.

var (
	// RulesLoadedTotal counts rule documents successfully parsed.
	// Labels:
	//   - source: "embedded" or "directory"
	RulesLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "loaded_total",
			Help:      "Total number of rule documents loaded",
		},
		[]string{"source"},
	)

	// RuleLoadErrorsTotal counts rule documents rejected while loading.
	RuleLoadErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "load_errors_total",
			Help:      "Total number of rule documents that failed to load",
		},
		[]string{"reason"},
	)

	// RuleEvaluationsTotal counts rule runs over a timeline.
	// Labels:
	//   - rule_id: The ID of the evaluated rule
	//   - result: "match", "no_match" or "error"
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "rule_evaluations_total",
			Help:      "Total number of rule evaluations over a timeline",
		},
		[]string{"rule_id", "result"},
	)

	// RuleEvaluationDuration measures the time one rule takes over the whole timeline.
	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "rule_evaluation_duration_seconds",
			Help:      "Time spent running one rule over a timeline",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"rule_id"},
	)

	RuleMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "rule_matches_total",
			Help:      "Total number of low-level events matched per rule",
		},
		[]string{"rule_id"},
	)

	RegexCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "cache_hits_total",
			Help:      "Total number of compiled regex cache hits",
		},
	)

	RegexCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "cache_misses_total",
			Help:      "Total number of compiled regex cache misses",
		},
	)

	RegexCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "cache_evictions_total",
			Help:      "Total number of compiled regexes evicted from the cache",
		},
	)

	// RegexTimeouts counts keyword regexes that exceeded their match timeout.
	// Labels:
	//   - pattern_hash: first 8 hex chars of the pattern's SHA-256
	RegexTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "timeouts_total",
			Help:      "Total number of regex evaluations aborted by the match timeout",
		},
		[]string{"pattern_hash"},
	)

	RegexExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "execution_duration_seconds",
			Help:      "Time spent evaluating keyword regexes",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 0.5, 1.0},
		},
	)
)

// RecordRuleEvaluation records one rule run with its match count and duration.
func RecordRuleEvaluation(ruleID string, matches int, durationSec float64) {
	result := "no_match"
	if matches > 0 {
		result = "match"
		RuleMatchesTotal.WithLabelValues(ruleID).Add(float64(matches))
	}
	RuleEvaluationsTotal.WithLabelValues(ruleID, result).Inc()
	RuleEvaluationDuration.WithLabelValues(ruleID).Observe(durationSec)
}

// RecordRuleEvaluationError records a rule run that failed or was abandoned.
func RecordRuleEvaluationError(ruleID string) {
	RuleEvaluationsTotal.WithLabelValues(ruleID, "error").Inc()
}

// RecordRuleLoaded records a successfully loaded rule document.
func RecordRuleLoaded(source string) {
	RulesLoadedTotal.WithLabelValues(source).Inc()
}

// RecordRuleLoadError records a rejected rule document.
func RecordRuleLoadError(reason string) {
	RuleLoadErrorsTotal.WithLabelValues(reason).Inc()
}

func RecordRegexCacheHit()      { RegexCacheHitsTotal.Inc() }
func RecordRegexCacheMiss()     { RegexCacheMissesTotal.Inc() }
func RecordRegexCacheEviction() { RegexCacheEvictionsTotal.Inc() }
