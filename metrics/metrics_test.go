package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, TimelineEventsIngested)
	assert.NotNil(t, HighLevelEventsReconstructed)
	assert.NotNil(t, HighLevelEventsMerged)
	assert.NotNil(t, IssuesRecorded)
	assert.NotNil(t, RuleEvaluationsTotal)
	assert.NotNil(t, RegexTimeouts)
}

func TestRecordExtraction(t *testing.T) {
	before := testutil.ToFloat64(ExtractorInvocations.WithLabelValues("test_extractor", "error"))
	RecordExtraction("test_extractor", true, nil)
	RecordExtraction("test_extractor", false, nil)
	RecordExtraction("test_extractor", false, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(ExtractorInvocations.WithLabelValues("test_extractor", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ExtractorInvocations.WithLabelValues("test_extractor", "value")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ExtractorInvocations.WithLabelValues("test_extractor", "absent")), 1.0)
}

func TestRecordRuleEvaluation(t *testing.T) {
	RecordRuleEvaluation("metrics-test-rule", 3, 0.01)
	RecordRuleEvaluation("metrics-test-rule", 0, 0.01)

	assert.Equal(t, 3.0, testutil.ToFloat64(RuleMatchesTotal.WithLabelValues("metrics-test-rule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RuleEvaluationsTotal.WithLabelValues("metrics-test-rule", "match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RuleEvaluationsTotal.WithLabelValues("metrics-test-rule", "no_match")))
}

func TestRecordIssues(t *testing.T) {
	type kind string
	RecordIssues(map[kind]int{"metrics_test_kind": 4})
	assert.Equal(t, 4.0, testutil.ToFloat64(IssuesRecorded.WithLabelValues("metrics_test_kind")))
}

func TestWriteTextfile(t *testing.T) {
	RecordIngested("csv", 2)
	path := filepath.Join(t.TempDir(), "eventrecon.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "eventrecon_timeline_events_ingested_total")
}
