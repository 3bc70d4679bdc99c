package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"eventrecon/bootstrap"
	"eventrecon/core"
	"eventrecon/rules"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRulesCmd(c *cli) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule documents",
	}
	rulesCmd.AddCommand(newRulesListCmd(c))
	rulesCmd.AddCommand(newRulesValidateCmd(c))
	return rulesCmd
}

// newRulesListCmd creates the 'list' subcommand
func newRulesListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list [SET]",
		Aliases: []string{"ls"},
		Short:   "List rule sets, or the rules of one set",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return c.listSets(out)
			}
			loaded, failures, err := bootstrap.LoadRules(c.cfg, args[0], c.sugar)
			renderFailedDocuments(out, failures)
			if err != nil {
				return err
			}
			return c.listRules(out, args[0], loaded)
		},
	}
}

func (c *cli) listSets(w io.Writer) error {
	names := rules.SetNames()
	if c.outputJSON {
		sets := make(map[string][]string, len(names))
		for _, name := range names {
			sets[name], _ = rules.Set(name)
		}
		return writeJSON(w, sets)
	}

	headerColor.Fprintln(w, "RULE SETS")
	headerColor.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "%-32s %s\n", "Name", "Documents")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, name := range names {
		paths, _ := rules.Set(name)
		fmt.Fprintf(w, "%-32s %d\n", name, len(paths))
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
	infoColor.Fprintln(w, "Run 'eventrecon rules list SET' to show the rules of a set")
	return nil
}

func (c *cli) listRules(w io.Writer, set string, loaded []*core.Rule) error {
	if c.outputJSON {
		return writeJSON(w, loaded)
	}

	headerColor.Fprintf(w, "RULES IN %s\n", strings.ToUpper(set))
	headerColor.Fprintln(w, strings.Repeat("=", 110))
	fmt.Fprintf(w, "%-38s %-38s %-14s %-18s\n", "ID", "Title", "Level", "Reconstructs")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range loaded {
		reconstructs := "(detection only)"
		if !r.IsPlainDetectionRule() {
			reconstructs = r.HighLevelEvent.Type
		}
		fmt.Fprintf(w, "%-38s %-38s %-14s %-18s\n", truncate(r.ID, 37), truncate(r.Title, 37), r.Level, reconstructs)
	}
	fmt.Fprintln(w, strings.Repeat("=", 110))
	return nil
}

// newRulesValidateCmd creates the 'validate' subcommand
func newRulesValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [DIR]",
		Short: "Validate rule documents",
		Long: `Parse, convert and compile every .yml/.yaml document below DIR and check
that each key source names a registered extractor. Without DIR the
embedded rules are validated, or rules.dir when it is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fsys afero.Fs = afero.FromIOFS{FS: rules.FS()}
			dir := "."
			switch {
			case len(args) == 1:
				fsys, dir = afero.NewOsFs(), args[0]
			case c.cfg.Rules.Dir != "":
				fsys, dir = afero.NewOsFs(), c.cfg.Rules.Dir
			}

			detection, err := bootstrap.InitEngine(c.cfg, nil, c.sugar)
			if err != nil {
				return err
			}
			validator := rules.NewValidator(detection.Matcher, detection.Reconstructor.Registry(), c.sugar)

			report, err := validator.ValidateDir(fsys, dir)
			if err != nil {
				return err
			}
			return c.renderValidation(cmd.OutOrStdout(), report)
		},
	}
}

func (c *cli) renderValidation(w io.Writer, report *rules.ValidationReport) error {
	if c.outputJSON {
		failures := make([]fileReport, 0, len(report.Failures))
		for _, f := range report.Failures {
			failures = append(failures, fileReport{Path: f.Path, Error: f.Err.Error()})
		}
		valid := make([]string, 0, len(report.Valid))
		for _, r := range report.Valid {
			valid = append(valid, r.SourcePath)
		}
		warnings := make([]fileReport, 0, len(report.Warnings))
		for _, pw := range report.Warnings {
			warnings = append(warnings, fileReport{Path: pw.Path, Error: fmt.Sprintf("regex %q: %s", pw.Pattern, strings.Join(pw.Issues, "; "))})
		}
		if err := writeJSON(w, map[string]any{"valid": valid, "invalid": failures, "warnings": warnings}); err != nil {
			return err
		}
	} else {
		for _, r := range report.Valid {
			successColor.Fprint(w, "✓ ")
			fmt.Fprintf(w, "%s (%s)\n", r.SourcePath, r.ID)
		}
		for _, pw := range report.Warnings {
			warningColor.Fprint(w, "⚠ ")
			fmt.Fprintf(w, "%s: regex %q\n    %s\n", pw.Path, pw.Pattern, strings.Join(pw.Issues, "; "))
		}
		for _, f := range report.Failures {
			errorColor.Fprint(w, "✗ ")
			fmt.Fprintf(w, "%s\n    %v\n", f.Path, f.Err)
		}
		fmt.Fprintln(w)
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d rule documents are invalid", len(report.Failures), report.Total())
	}
	if !c.outputJSON {
		successColor.Fprintf(w, "All %d rule documents are valid\n", report.Total())
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
