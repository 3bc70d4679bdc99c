package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"eventrecon/bootstrap"
	"eventrecon/core"
	"eventrecon/detect"
	"eventrecon/sigma"

	"github.com/fatih/color"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// maxRuleRows caps the per-rule table of the summary
const maxRuleRows = 20

func renderSummary(w io.Writer, s *bootstrap.Summary) {
	headerColor.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	headerColor.Fprintf(w, "  Analysis %s\n", s.RunID)
	headerColor.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	printSection(w, "Run")
	printField(w, "Output", fmt.Sprintf("%s (%s)", s.Output, s.OutputFormat))
	printField(w, "Started", s.StartedAt.Format(time.RFC3339))
	printField(w, "Duration", formatDuration(s.Duration))
	fmt.Fprintln(w)

	printSection(w, "Timeline")
	printField(w, "Rules Loaded", fmt.Sprintf("%d", s.RulesLoaded))
	printField(w, "Input Events", fmt.Sprintf("%d", s.InputEvents))
	printField(w, "Reconstructed", fmt.Sprintf("%d", s.Reconstructed))
	printField(w, "Merged Duplicates", fmt.Sprintf("%d", s.Reconstructed-s.Events))
	printField(w, "High-Level Events", successColor.Sprintf("%d", s.Events))
	fmt.Fprintln(w)

	renderRuleResults(w, s)
	renderFailedDocuments(w, s.FailedDocuments)
	renderIssues(w, s.Issues)

	if len(s.Issues) == 0 && len(s.FailedDocuments) == 0 {
		successColor.Fprintln(w, "✓ Analysis completed without issues")
	} else {
		warningColor.Fprintf(w, "⚠ Analysis completed with %d issue kinds and %d failed rule documents\n",
			len(s.Issues), len(s.FailedDocuments))
	}
}

// renderRuleResults lists the rules that matched, busiest first
func renderRuleResults(w io.Writer, s *bootstrap.Summary) {
	results := slices.Clone(s.Rules)
	slices.SortStableFunc(results, func(a, b detect.RuleResult) int { return b.Matches - a.Matches })

	printSection(w, "Rules")
	fmt.Fprintf(w, "  %-45s %-8s %-8s %-10s\n", "Rule", "Matches", "Events", "Duration")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 75))
	for i, r := range results {
		if i == maxRuleRows {
			infoColor.Fprintf(w, "  ... %d more\n", len(results)-maxRuleRows)
			break
		}
		name := truncate(r.Title, 44)
		if r.Err != nil {
			errorColor.Fprintf(w, "  %-45s %-8s %-8s %-10s\n", name, "-", "failed", formatDuration(r.Duration))
			continue
		}
		fmt.Fprintf(w, "  %-45s %-8d %-8d %-10s\n", name, r.Matches, len(r.Events), formatDuration(r.Duration))
	}
	fmt.Fprintln(w)
}

func renderFailedDocuments(w io.Writer, failures []*sigma.FileError) {
	if len(failures) == 0 {
		return
	}
	printSection(w, "Failed Rule Documents")
	for _, f := range failures {
		errorColor.Fprintf(w, "  ✗ %s\n", f.Path)
		fmt.Fprintf(w, "    %v\n", f.Err)
	}
	fmt.Fprintln(w)
}

func renderIssues(w io.Writer, issues []core.Issue) {
	if len(issues) == 0 {
		return
	}
	printSection(w, "Issues")
	for _, is := range issues {
		where := is.RuleID
		if is.Key != "" {
			where += "/" + is.Key
		}
		warningColor.Fprintf(w, "  [%s] ", is.Kind)
		fmt.Fprintf(w, "%s x%d", where, is.Count)
		if is.FirstEventID >= 0 {
			fmt.Fprintf(w, " (first event %d)", is.FirstEventID)
		}
		fmt.Fprintf(w, "\n    %s\n", is.Message)
	}
	fmt.Fprintln(w)
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	headerColor.Fprintf(w, "  %s\n", title)
	headerColor.Fprintln(w, "  "+strings.Repeat("─", len(title)))
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-25s %s\n", key+":", value)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// summaryReport is the --json rendering of a run
type summaryReport struct {
	RunID           string       `json:"run_id"`
	StartedAt       time.Time    `json:"started_at"`
	DurationMS      int64        `json:"duration_ms"`
	Output          string       `json:"output"`
	OutputFormat    string       `json:"output_format"`
	RulesLoaded     int          `json:"rules_loaded"`
	InputEvents     int          `json:"input_events"`
	Reconstructed   int          `json:"reconstructed"`
	Events          int          `json:"events"`
	Rules           []ruleReport `json:"rules"`
	FailedDocuments []fileReport `json:"failed_documents"`
	Issues          []core.Issue `json:"issues"`
}

type ruleReport struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Matches    int    `json:"matches"`
	Events     int    `json:"events"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type fileReport struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func summaryJSON(s *bootstrap.Summary) summaryReport {
	r := summaryReport{
		RunID:           s.RunID,
		StartedAt:       s.StartedAt,
		DurationMS:      s.Duration.Milliseconds(),
		Output:          s.Output,
		OutputFormat:    s.OutputFormat,
		RulesLoaded:     s.RulesLoaded,
		InputEvents:     s.InputEvents,
		Reconstructed:   s.Reconstructed,
		Events:          s.Events,
		Rules:           make([]ruleReport, 0, len(s.Rules)),
		FailedDocuments: make([]fileReport, 0, len(s.FailedDocuments)),
		Issues:          s.Issues,
	}
	if r.Issues == nil {
		r.Issues = []core.Issue{}
	}
	for _, rr := range s.Rules {
		entry := ruleReport{
			ID:         rr.RuleID,
			Title:      rr.Title,
			Matches:    rr.Matches,
			Events:     len(rr.Events),
			DurationMS: rr.Duration.Milliseconds(),
		}
		if rr.Err != nil {
			entry.Error = rr.Err.Error()
		}
		r.Rules = append(r.Rules, entry)
	}
	for _, f := range s.FailedDocuments {
		r.FailedDocuments = append(r.FailedDocuments, fileReport{Path: f.Path, Error: f.Err.Error()})
	}
	return r
}
