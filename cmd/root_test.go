package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"eventrecon/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timelineCSV = `datetime,timestamp_desc,source,source_long,message,parser,display_name
2024-01-15T10:30:00.000000+00:00,Last Visited Time,WEBHIST,Chrome History,https://www.google.com/search?q=forensic+timeline (forensic timeline - Google Search),sqlite/chrome_27_history,OS:/home/alice/History
2024-01-15T10:31:12.000000+00:00,Content Modification Time,LOG,Syslog,"sshd[1234]: Failed password for root from 10.0.0.5 port 52113 ssh2",syslog,OS:/var/log/auth.log
`

// execute runs the root command in an empty working directory so no
// eventrecon.yaml is picked up.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--no-color", "--quiet", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRulesList_Sets(t *testing.T) {
	out, err := execute(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "RULE SETS")
	assert.Contains(t, out, "all-web-activity")
	assert.Contains(t, out, "authentication-activity")
}

func TestRulesList_SetJSON(t *testing.T) {
	out, err := execute(t, "--json", "rules", "list", "google-search")
	require.NoError(t, err)

	var listed []*core.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Google Search", listed[0].Title)
	require.NotNil(t, listed[0].HighLevelEvent)
	assert.Equal(t, "Google Search", listed[0].HighLevelEvent.Type)
}

func TestRulesValidate_Embedded(t *testing.T) {
	out, err := execute(t, "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "rule documents are valid")
	assert.NotContains(t, out, "✗")
}

func TestRulesValidate_InvalidDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(`
title: Bad Modifier
id: bad-modifier
detection:
  keywords:
    "|contains":
      - "x"
  condition: keywords
`), 0o644))

	out, err := execute(t, "rules", "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 rule documents are invalid")
	assert.Contains(t, out, "bad.yml")
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "timeline.csv")
	output := filepath.Join(dir, "out", "events.json")
	require.NoError(t, os.WriteFile(input, []byte(timelineCSV), 0o644))

	out, err := execute(t, "--json", "analyze", "-i", input, "-o", output, "-t", "google-search", "--context-window", "0")
	require.NoError(t, err)

	var summary summaryReport
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.RulesLoaded)
	assert.Equal(t, 2, summary.InputEvents)
	assert.Equal(t, 1, summary.Events)
	assert.Equal(t, "json", summary.OutputFormat)
	assert.Empty(t, summary.FailedDocuments)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var events []*core.HighLevelEvent
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Google Search", events[0].Type)
	assert.Empty(t, events[0].Supporting[core.SupportingAfter])
}

func TestAnalyze_HumanSummary(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "timeline.csv")
	require.NoError(t, os.WriteFile(input, []byte(timelineCSV), 0o644))

	out, err := execute(t, "analyze", "-i", input, "-o", filepath.Join(dir, "case.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "High-Level Events:")
	assert.Contains(t, out, "(sqlite)")
}

func TestAnalyze_RequiresFlags(t *testing.T) {
	_, err := execute(t, "analyze", "-i", "timeline.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestAnalyze_InvalidConfigValue(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "timeline.csv")
	require.NoError(t, os.WriteFile(input, []byte(timelineCSV), 0o644))

	_, err := execute(t, "analyze", "-i", input, "-o", filepath.Join(dir, "e.json"), "--workers", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}
