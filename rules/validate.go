package rules

import (
	"fmt"

	"eventrecon/core"
	"eventrecon/detect"
	"eventrecon/extract"
	"eventrecon/sigma"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ValidationReport is the outcome of checking a tree of rule documents.
type ValidationReport struct {
	Valid    []*core.Rule
	Failures []*sigma.FileError
	// Warnings lists regex keywords of valid rules that may backtrack badly
	Warnings []PatternWarning
}

// PatternWarning flags one keyword regex of a valid rule
type PatternWarning struct {
	Path   string
	RuleID string
	*detect.RegexComplexity
}

// Total is the number of documents checked
func (r *ValidationReport) Total() int {
	return len(r.Valid) + len(r.Failures)
}

// Validator checks rule documents the way a run would use them: the
// document must parse, convert, compile and only reference registered
// extractors.
type Validator struct {
	matcher  *detect.Matcher
	registry *extract.Registry
	logger   *zap.SugaredLogger
}

// NewValidator creates a validator. A nil registry selects the built-in extractors.
func NewValidator(matcher *detect.Matcher, registry *extract.Registry, logger *zap.SugaredLogger) *Validator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if matcher == nil {
		matcher = detect.NewMatcher(nil, logger)
	}
	if registry == nil {
		registry = extract.Builtin()
	}
	return &Validator{matcher: matcher, registry: registry, logger: logger}
}

// ValidateDir checks every .yml/.yaml document below dir on fsys.
func (v *Validator) ValidateDir(fsys afero.Fs, dir string) (*ValidationReport, error) {
	parser := sigma.NewParser(fsys, sigma.WithSource("validate"), sigma.WithLogger(v.logger))
	docs, failures, err := parser.ParseDirectory(dir)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{Failures: failures}
	converter := sigma.NewConverter()
	for _, doc := range docs {
		rule, err := converter.Convert(doc)
		if err == nil {
			err = v.Check(rule)
		}
		if err != nil {
			report.Failures = append(report.Failures, &sigma.FileError{Path: doc.FilePath, Err: err})
			continue
		}
		report.Valid = append(report.Valid, rule)
		for _, c := range RegexRisks(rule) {
			report.Warnings = append(report.Warnings, PatternWarning{Path: doc.FilePath, RuleID: rule.ID, RegexComplexity: c})
		}
	}

	v.logger.Infow("Rule documents validated",
		"dir", dir,
		"valid", len(report.Valid),
		"invalid", len(report.Failures),
		"pattern_warnings", len(report.Warnings))
	return report, nil
}

// Check compiles the detection of rule and resolves every key source.
func (v *Validator) Check(rule *core.Rule) error {
	if _, err := v.matcher.Compile(rule); err != nil {
		return err
	}
	if rule.HighLevelEvent == nil {
		return nil
	}
	for _, key := range rule.HighLevelEvent.Keys {
		if _, err := v.registry.Resolve(key.Source); err != nil {
			return fmt.Errorf("key %q: %w", key.Name, err)
		}
	}
	return nil
}

// RegexRisks analyzes the regex keywords of rule and returns the risky ones.
func RegexRisks(rule *core.Rule) []*detect.RegexComplexity {
	var risky []*detect.RegexComplexity
	for _, g := range rule.Detection.EffectiveGroups() {
		if !g.HasModifier(core.ModifierRegex) {
			continue
		}
		for _, kw := range g.Keywords {
			if c := detect.AnalyzeRegexComplexity(kw); !c.IsSafe() {
				risky = append(risky, c)
			}
		}
	}
	return risky
}
