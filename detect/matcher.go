package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventrecon/core"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// CompiledDetection is a validated detection clause ready for matching.
type CompiledDetection struct {
	RuleID string
	groups []compiledGroup
}

type compiledGroup struct {
	all      bool
	regex    bool
	keywords []string
}

// Matcher evaluates detection clauses against low-level events. Literal
// keywords are case-sensitive substring tests; re keywords are regex searches.
// A keyword hits when it matches either the event's evidence or its type.
type Matcher struct {
	regex  regexEvaluator
	logger *zap.SugaredLogger
}

// regexEvaluator is satisfied by *RegexCache
type regexEvaluator interface {
	Compile(pattern string) (*regexp2.Regexp, error)
	Match(pattern, input string) (bool, error)
}

// NewMatcher creates a matcher. A nil regex cache gets a default-sized one.
func NewMatcher(regex *RegexCache, logger *zap.SugaredLogger) *Matcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if regex == nil {
		// defaults cannot fail
		regex, _ = NewRegexCache(0, 0, logger)
	}
	return &Matcher{regex: regex, logger: logger}
}

// Compile validates the rule's detection clause and precompiles its regexes.
// Every failure is a *core.RuleConfigurationError scoped to the whole rule.
func (m *Matcher) Compile(rule *core.Rule) (*CompiledDetection, error) {
	det := rule.Detection
	if det.Condition != core.ConditionKeywords {
		return nil, &core.RuleConfigurationError{
			RuleID: rule.ID,
			Reason: fmt.Sprintf("condition %q is not supported", det.Condition),
			Err:    core.ErrUnknownCondition,
		}
	}

	groups := det.EffectiveGroups()
	if len(groups) == 0 {
		return nil, &core.RuleConfigurationError{RuleID: rule.ID, Err: core.ErrNoKeywords}
	}

	cd := &CompiledDetection{RuleID: rule.ID, groups: make([]compiledGroup, 0, len(groups))}
	for i, g := range groups {
		for _, mod := range g.Modifiers {
			if mod != core.ModifierAll && mod != core.ModifierRegex {
				return nil, &core.RuleConfigurationError{
					RuleID: rule.ID,
					Reason: fmt.Sprintf("modifier %q in keyword group %d", mod, i),
					Err:    core.ErrInvalidModifier,
				}
			}
		}
		if len(g.Keywords) == 0 {
			return nil, &core.RuleConfigurationError{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("keyword group %d is empty", i),
				Err:    core.ErrNoKeywords,
			}
		}

		cg := compiledGroup{
			all:      g.HasModifier(core.ModifierAll),
			regex:    g.HasModifier(core.ModifierRegex),
			keywords: g.Keywords,
		}
		if cg.regex {
			for _, kw := range g.Keywords {
				if _, err := m.regex.Compile(kw); err != nil {
					return nil, &core.RuleConfigurationError{
						RuleID: rule.ID,
						Reason: fmt.Sprintf("keyword %q: %v", kw, err),
						Err:    core.ErrInvalidRegex,
					}
				}
			}
		}
		cd.groups = append(cd.groups, cg)
	}
	return cd, nil
}

// Matches compiles the rule and tests a single event. Callers scanning many
// events should use FindMatchesInRange, which compiles once.
func (m *Matcher) Matches(rule *core.Rule, ev *core.LowLevelEvent) (bool, error) {
	cd, err := m.Compile(rule)
	if err != nil {
		return false, err
	}
	return m.MatchEvent(cd, ev)
}

// MatchEvent tests ev against a compiled detection. Every group must match.
// A regex timeout aborts evaluation with ErrRegexTimeout.
func (m *Matcher) MatchEvent(cd *CompiledDetection, ev *core.LowLevelEvent) (bool, error) {
	for _, g := range cd.groups {
		ok, err := m.matchGroup(g, ev)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchGroup(g compiledGroup, ev *core.LowLevelEvent) (bool, error) {
	for _, kw := range g.keywords {
		hit, err := m.matchKeyword(g.regex, kw, ev)
		if err != nil {
			return false, err
		}
		if hit && !g.all {
			return true, nil
		}
		if !hit && g.all {
			return false, nil
		}
	}
	return g.all, nil
}

func (m *Matcher) matchKeyword(regex bool, kw string, ev *core.LowLevelEvent) (bool, error) {
	if !regex {
		return strings.Contains(ev.Evidence, kw) || strings.Contains(ev.Type, kw), nil
	}
	for _, field := range [...]string{ev.Evidence, ev.Type} {
		hit, err := m.regex.Match(kw, field)
		if err != nil || hit {
			return hit, err
		}
	}
	return false, nil
}

// FindMatchesInRange returns the events with startID <= id < endID that match
// rule, in ascending id order, from a single pass over the timeline. A regex
// timeout on one event counts as no match for that event and is recorded in
// report; the scan continues.
func (m *Matcher) FindMatchesInRange(ctx context.Context, timeline *core.LowLevelTimeline, startID, endID int64, rule *core.Rule, report *core.Report) ([]*core.LowLevelEvent, error) {
	cd, err := m.Compile(rule)
	if err != nil {
		return nil, err
	}
	return timeline.FindMatchesInRange(ctx, startID, endID, func(ev *core.LowLevelEvent) (bool, error) {
		ok, err := m.MatchEvent(cd, ev)
		if errors.Is(err, ErrRegexTimeout) {
			if report != nil {
				report.Add(core.IssueRegexTimeout, rule.ID, "", ev.ID, err)
			}
			return false, nil
		}
		return ok, err
	})
}
