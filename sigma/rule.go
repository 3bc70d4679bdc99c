package sigma

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SigmaRule is a rule document as written in YAML. Plain Sigma rules carry
// only a detection clause; event reconstruction rules add high_level_event
// and reasoning.
type SigmaRule struct {
	// Core identification
	ID          string `yaml:"id" json:"id" validate:"required"`
	Title       string `yaml:"title" json:"title" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	Date        string `yaml:"date,omitempty" json:"date,omitempty"`
	Modified    string `yaml:"modified,omitempty" json:"modified,omitempty"`

	// Status and severity
	Status string `yaml:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=stable test experimental deprecated unsupported"`
	Level  string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=critical high medium low informational"`

	// References and categorization
	References     []string          `yaml:"references,omitempty" json:"references,omitempty"`
	Tags           []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Logsource      map[string]string `yaml:"logsource,omitempty" json:"logsource,omitempty"`
	FalsePositives []string          `yaml:"falsepositives,omitempty" json:"falsepositives,omitempty"`

	Detection      Detection            `yaml:"detection" json:"detection"`
	HighLevelEvent *HighLevelEventBlock `yaml:"high_level_event,omitempty" json:"high_level_event,omitempty"`
	Reasoning      *ReasoningBlock      `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`

	// RawYAML contains the original document
	RawYAML string `yaml:"-" json:"-"`
	// FilePath is where the document was read from
	FilePath string `yaml:"-" json:"file_path,omitempty"`
}

// HighLevelEventBlock is the high_level_event section of a reconstruction rule.
type HighLevelEventBlock struct {
	Type        string     `yaml:"type" json:"type" validate:"required"`
	Description string     `yaml:"description" json:"description"`
	Keys        []KeyBlock `yaml:"keys,omitempty" json:"keys,omitempty" validate:"dive"`
}

// KeyBlock binds a key name to an extractor.
type KeyBlock struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Source string `yaml:"source" json:"source" validate:"required"`
}

// ReasoningBlock is the reasoning section of a reconstruction rule.
type ReasoningBlock struct {
	Description string `yaml:"description" json:"description"`
}

// KeywordBlock is one keyword group of a detection clause.
type KeywordBlock struct {
	Modifiers []string `json:"modifiers,omitempty"`
	Keywords  []string `json:"keywords"`
}

// Detection is the detection clause. Keywords may be written as a plain list,
// as a mapping from a modifier chain ("|all|re") to a list, or as
// "keywords|all" style keys directly under detection. Keys the engine does
// not evaluate, such as named selections, are kept in Other.
type Detection struct {
	Keywords  []KeywordBlock `json:"keywords"`
	Condition string         `json:"condition,omitempty"`
	Modifiers []string       `json:"modifiers,omitempty"`
	Other     map[string]any `json:"other,omitempty"`
}

// UnmarshalYAML decodes the detection mapping preserving keyword group order.
func (d *Detection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: detection must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		switch {
		case key == "condition":
			if err := valueNode.Decode(&d.Condition); err != nil {
				return fmt.Errorf("line %d: condition: %w", valueNode.Line, err)
			}
		case key == "modifiers":
			if err := valueNode.Decode(&d.Modifiers); err != nil {
				return fmt.Errorf("line %d: modifiers: %w", valueNode.Line, err)
			}
		case key == "keywords" || strings.HasPrefix(key, "keywords|"):
			inherited := splitModifiers(strings.TrimPrefix(key, "keywords"))
			groups, err := decodeKeywords(valueNode)
			if err != nil {
				return err
			}
			for _, g := range groups {
				g.Modifiers = append(append([]string(nil), inherited...), g.Modifiers...)
				d.Keywords = append(d.Keywords, g)
			}
		default:
			var v any
			if err := valueNode.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %s: %w", valueNode.Line, key, err)
			}
			if d.Other == nil {
				d.Other = make(map[string]any)
			}
			d.Other[key] = v
		}
	}
	return nil
}

func decodeKeywords(node *yaml.Node) ([]KeywordBlock, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []KeywordBlock{{Keywords: []string{node.Value}}}, nil
	case yaml.SequenceNode:
		kw, err := decodeKeywordList(node)
		if err != nil {
			return nil, err
		}
		return []KeywordBlock{{Keywords: kw}}, nil
	case yaml.MappingNode:
		var groups []KeywordBlock
		for i := 0; i+1 < len(node.Content); i += 2 {
			kw, err := decodeKeywordList(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			groups = append(groups, KeywordBlock{
				Modifiers: splitModifiers(node.Content[i].Value),
				Keywords:  kw,
			})
		}
		return groups, nil
	default:
		return nil, fmt.Errorf("line %d: keywords must be a list or a modifier mapping", node.Line)
	}
}

func decodeKeywordList(node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode {
		return []string{node.Value}, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: keyword group must be a list", node.Line)
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: keyword must be a scalar", item.Line)
		}
		out = append(out, item.Value)
	}
	return out, nil
}

// splitModifiers turns "|all|re" (or "all|re") into its modifier names.
func splitModifiers(chain string) []string {
	var mods []string
	for _, m := range strings.Split(chain, "|") {
		if m = strings.TrimSpace(m); m != "" {
			mods = append(mods, m)
		}
	}
	return mods
}

// IsReconstructionRule reports whether the document describes a high-level event.
func (r *SigmaRule) IsReconstructionRule() bool {
	return r.HighLevelEvent != nil
}

var validate = validator.New()

// Validate checks if a rule document has all required fields
func (r *SigmaRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if len(r.Detection.Keywords) == 0 && len(r.Detection.Other) == 0 {
		return errors.New("rule detection logic is required")
	}
	return nil
}
