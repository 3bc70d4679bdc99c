package sigma

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"eventrecon/core"
)

// DefaultCategory is used when a rule document names no category
const DefaultCategory = "Unknown"

// dateLayouts are the accepted forms of the date and modified fields
var dateLayouts = []string{"2006/01/02", "2006-01-02"}

// Converter turns rule documents into engine rules
type Converter struct{}

// NewConverter creates a new rule converter
func NewConverter() *Converter {
	return &Converter{}
}

// ConvertBatch converts multiple rule documents, collecting failures.
func (c *Converter) ConvertBatch(sigmaRules []*SigmaRule) ([]*core.Rule, []error) {
	var rules []*core.Rule
	var errs []error

	for _, sigmaRule := range sigmaRules {
		rule, err := c.Convert(sigmaRule)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to convert rule %s: %w", sigmaRule.ID, err))
			continue
		}
		rules = append(rules, rule)
	}

	return rules, errs
}

// Convert converts a single rule document. Status defaults to experimental,
// level to informational and category to DefaultCategory.
func (c *Converter) Convert(sigmaRule *SigmaRule) (*core.Rule, error) {
	if sigmaRule == nil {
		return nil, fmt.Errorf("sigma rule is nil")
	}
	if err := sigmaRule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule document: %w", err)
	}

	date, err := parseRuleDate(sigmaRule.Date)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	modified, err := parseRuleDate(sigmaRule.Modified)
	if err != nil {
		return nil, fmt.Errorf("modified: %w", err)
	}

	status := core.RuleStatus(sigmaRule.Status)
	if status == "" {
		status = core.RuleStatusExperimental
	}
	level := core.RuleLevel(sigmaRule.Level)
	if level == "" {
		level = core.RuleLevelInformational
	}
	category := sigmaRule.Category
	if category == "" {
		category = DefaultCategory
	}

	tactics, techniques := c.extractMITRETags(sigmaRule.Tags)

	rule := &core.Rule{
		Title:           sigmaRule.Title,
		ID:              sigmaRule.ID,
		Description:     sigmaRule.Description,
		Category:        category,
		Status:          status,
		Level:           level,
		Author:          sigmaRule.Author,
		Date:            date,
		Modified:        modified,
		Detection:       c.convertDetection(sigmaRule.Detection),
		References:      sigmaRule.References,
		Tags:            sigmaRule.Tags,
		FalsePositives:  sigmaRule.FalsePositives,
		MitreTactics:    tactics,
		MitreTechniques: techniques,
		ContentHash:     c.calculateContentHash(sigmaRule),
		SourcePath:      sigmaRule.FilePath,
	}

	if hle := sigmaRule.HighLevelEvent; hle != nil {
		spec := &core.HighLevelEventSpec{
			Type:        hle.Type,
			Description: hle.Description,
			Keys:        make([]core.KeyDefinition, 0, len(hle.Keys)),
		}
		for _, k := range hle.Keys {
			spec.Keys = append(spec.Keys, core.KeyDefinition{Name: k.Name, Source: k.Source})
		}
		rule.HighLevelEvent = spec
		if sigmaRule.Reasoning != nil {
			rule.Reasoning = &core.ReasoningSpec{Description: sigmaRule.Reasoning.Description}
		}
	}

	return rule, nil
}

func (c *Converter) convertDetection(d Detection) core.DetectionDefinition {
	condition := strings.TrimSpace(d.Condition)
	if condition == "" {
		condition = core.ConditionKeywords
	}
	groups := make([]core.KeywordGroup, 0, len(d.Keywords))
	for _, kb := range d.Keywords {
		groups = append(groups, core.KeywordGroup{
			Modifiers: kb.Modifiers,
			Keywords:  kb.Keywords,
		})
	}
	return core.DetectionDefinition{
		Groups:    groups,
		Condition: condition,
		Modifiers: d.Modifiers,
	}
}

func parseRuleDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q, want YYYY/MM/DD or YYYY-MM-DD", s)
}

// calculateContentHash computes a SHA-256 hash of the rule document
func (c *Converter) calculateContentHash(rule *SigmaRule) string {
	data := rule.RawYAML
	if data == "" {
		data = fmt.Sprintf("%s|%s|%v|%v", rule.Title, rule.Description, rule.Detection, rule.HighLevelEvent)
	}
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// extractMITRETags extracts MITRE ATT&CK tactics and techniques from rule tags
func (c *Converter) extractMITRETags(tags []string) ([]string, []string) {
	var tactics []string
	var techniques []string

	for _, tag := range tags {
		rest, ok := strings.CutPrefix(tag, "attack.")
		if !ok || rest == "" {
			continue
		}
		// techniques look like attack.t1078 or attack.t1078.001
		if len(rest) >= 5 && rest[0] == 't' && rest[1] >= '0' && rest[1] <= '9' {
			techniques = append(techniques, "T"+rest[1:])
		} else {
			tactics = append(tactics, rest)
		}
	}

	return tactics, techniques
}
