package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventrecon/bootstrap"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		input, output string
		inputFormat   string
		outputFormat  string
		set           string
	)

	cmd := &cobra.Command{
		Use:   "analyze -i TIMELINE -o OUTPUT",
		Short: "Reconstruct high-level events from a timeline",
		Long: `Run a rule set over a plaso timeline export and write the merged
high-level timeline.

The input format is taken from the file extension (.csv, .jsonl) unless
--input-format is given. The output format follows the extension as well:
.json, .msgpack or .db/.sqlite.`,
		Example: `  eventrecon analyze -i timeline.csv -o events.json
  eventrecon analyze -i timeline.jsonl -o case.db -t all-web-activity
  eventrecon analyze -i timeline.csv -o events.json --rules-dir ./my-rules --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runAnalyze(ctx, cmd.OutOrStdout(), bootstrap.AnalyzeRequest{
				Input:        input,
				Output:       output,
				InputFormat:  inputFormat,
				OutputFormat: outputFormat,
				RuleSet:      set,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "", "Timeline export to analyze (plaso CSV or json_line)")
	flags.StringVarP(&output, "output", "o", "", "Output file for the reconstructed timeline")
	flags.StringVarP(&set, "set", "t", "", "Rule set to run (see 'eventrecon rules list')")
	flags.StringVar(&inputFormat, "input-format", "", "Input format (auto, csv, jsonl)")
	flags.StringVar(&outputFormat, "output-format", "", "Output format (auto, json, msgpack, sqlite)")
	flags.Int("workers", 4, "Number of rules evaluated concurrently")
	flags.Int("context-window", 5, "Neighbouring events attached on each side of a match")
	flags.Duration("rule-timeout", 5*time.Minute, "Abandon a single rule after this long (0 disables)")
	flags.Bool("pretty", true, "Indent JSON output")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	mustBind(c.v, "engine.worker_count", flags.Lookup("workers"))
	mustBind(c.v, "engine.context_window", flags.Lookup("context-window"))
	mustBind(c.v, "engine.rule_timeout", flags.Lookup("rule-timeout"))
	mustBind(c.v, "output.pretty", flags.Lookup("pretty"))
	mustBind(c.v, "metrics.textfile", flags.Lookup("metrics-textfile"))

	return cmd
}

func (c *cli) runAnalyze(ctx context.Context, out io.Writer, req bootstrap.AnalyzeRequest) error {
	app, err := bootstrap.NewApp(c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Shutdown()

	// Show progress spinner if requested
	var s *spinner.Spinner
	if !c.outputJSON && !c.quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Starting analysis..."
		s.Start()
		req.Progress = func(stage bootstrap.Stage) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" %s...", capitalize(string(stage)))
			s.Unlock()
		}
	}

	summary, err := app.Analyze(ctx, req)

	if s != nil {
		s.Stop()
	}

	if err != nil {
		if summary != nil && !c.outputJSON {
			renderFailedDocuments(out, summary.FailedDocuments)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	if c.outputJSON {
		return writeJSON(out, summaryJSON(summary))
	}
	renderSummary(out, summary)
	return nil
}
