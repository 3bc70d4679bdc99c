package core

import (
	"slices"
	"time"
)

// ConditionKeywords is the only detection condition the engine understands:
// every keyword group participates in matching per its modifiers.
const ConditionKeywords = "keywords"

// Keyword modifiers
const (
	// ModifierAll requires every keyword of a group to match instead of any one
	ModifierAll = "all"
	// ModifierRegex treats keywords as regular expressions instead of literal substrings
	ModifierRegex = "re"
)

// RuleStatus is the maturity of a rule
type RuleStatus string

const (
	RuleStatusStable       RuleStatus = "stable"
	RuleStatusTest         RuleStatus = "test"
	RuleStatusExperimental RuleStatus = "experimental"
	RuleStatusDeprecated   RuleStatus = "deprecated"
	RuleStatusUnsupported  RuleStatus = "unsupported"
)

// RuleLevel is the severity of what a rule detects
type RuleLevel string

const (
	RuleLevelCritical      RuleLevel = "critical"
	RuleLevelHigh          RuleLevel = "high"
	RuleLevelMedium        RuleLevel = "medium"
	RuleLevelLow           RuleLevel = "low"
	RuleLevelInformational RuleLevel = "informational"
)

// KeywordGroup is a set of keywords evaluated under the same modifiers.
type KeywordGroup struct {
	Modifiers []string `json:"modifiers,omitempty"`
	Keywords  []string `json:"keywords"`
}

// HasModifier reports whether the group carries modifier m.
func (g KeywordGroup) HasModifier(m string) bool {
	return slices.Contains(g.Modifiers, m)
}

// DetectionDefinition is the detection clause of a rule.
type DetectionDefinition struct {
	// Groups must all match for an event to match
	Groups []KeywordGroup `json:"groups"`
	// Condition must be ConditionKeywords
	Condition string `json:"condition"`
	// Modifiers apply to every group in addition to the group's own
	Modifiers []string `json:"modifiers,omitempty"`
}

// EffectiveGroups returns the keyword groups with clause-level modifiers folded in.
func (d DetectionDefinition) EffectiveGroups() []KeywordGroup {
	groups := make([]KeywordGroup, 0, len(d.Groups))
	for _, g := range d.Groups {
		mods := slices.Clone(g.Modifiers)
		for _, m := range d.Modifiers {
			if !slices.Contains(mods, m) {
				mods = append(mods, m)
			}
		}
		groups = append(groups, KeywordGroup{Modifiers: mods, Keywords: g.Keywords})
	}
	return groups
}

// KeyDefinition names a key of the high-level event and the extractor producing it.
type KeyDefinition struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// HighLevelEventSpec describes how to reconstruct a high-level event.
type HighLevelEventSpec struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Keys        []KeyDefinition `json:"keys"`
}

// ReasoningSpec describes the reasoning artefact attached to reconstructed events.
type ReasoningSpec struct {
	Description string `json:"description"`
}

// Rule is the parsed, immutable form of a detection rule.
type Rule struct {
	Title          string              `json:"title"`
	ID             string              `json:"id"`
	Description    string              `json:"description"`
	Category       string              `json:"category"`
	Status         RuleStatus          `json:"status"`
	Level          RuleLevel           `json:"level"`
	Author         string              `json:"author,omitempty"`
	Date           *time.Time          `json:"date,omitempty"`
	Modified       *time.Time          `json:"modified,omitempty"`
	Detection      DetectionDefinition `json:"detection"`
	HighLevelEvent *HighLevelEventSpec `json:"high_level_event,omitempty"`
	Reasoning      *ReasoningSpec      `json:"reasoning,omitempty"`
	References     []string            `json:"references,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	FalsePositives []string            `json:"falsepositives,omitempty"`
	// MITRE ATT&CK tactics and techniques derived from attack.* tags
	MitreTactics    []string `json:"mitre_tactics,omitempty"`
	MitreTechniques []string `json:"mitre_techniques,omitempty"`
	// ContentHash identifies the rule document content
	ContentHash string `json:"content_hash,omitempty"`
	// SourcePath is the file the rule was loaded from, if any
	SourcePath string `json:"-"`
}

// IsPlainDetectionRule is true when the rule only flags matches and does not
// reconstruct a high-level event.
func (r *Rule) IsPlainDetectionRule() bool {
	return r.HighLevelEvent == nil
}

// Name returns the rule title, falling back to its id.
func (r *Rule) Name() string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}
