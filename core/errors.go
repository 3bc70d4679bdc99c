package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for rule configuration problems. Use errors.Is against a
// *RuleConfigurationError to find out which one occurred.
var (
	// ErrUnknownCondition is returned for any detection condition other than "keywords"
	ErrUnknownCondition = errors.New("unknown detection condition")
	// ErrInvalidModifier is returned for keyword modifiers outside {all, re}
	ErrInvalidModifier = errors.New("invalid keyword modifier")
	// ErrNoKeywords is returned when a detection clause has nothing to match
	ErrNoKeywords = errors.New("detection has no keywords")
	// ErrInvalidRegex is returned when a keyword under the re modifier does not compile
	ErrInvalidRegex = errors.New("invalid regex keyword")
	// ErrUnknownExtractor is returned when a key references an unregistered extractor
	ErrUnknownExtractor = errors.New("unknown extractor")
)

// RuleConfigurationError is scoped to a single rule, or to a single key of a rule
// when Key is set. The engine skips the smallest affected unit and continues.
type RuleConfigurationError struct {
	// RuleID identifies the offending rule
	RuleID string
	// Key is the key definition name when the error is scoped to one key
	Key string
	// Reason is a human readable explanation
	Reason string
	// Err is one of the sentinel errors above, possibly wrapping a cause
	Err error
}

// Error implements the error interface for RuleConfigurationError.
func (e *RuleConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("rule configuration error")
	if e.RuleID != "" {
		fmt.Fprintf(&b, " in rule %q", e.RuleID)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Unwrap returns the underlying sentinel so errors.Is works.
func (e *RuleConfigurationError) Unwrap() error {
	return e.Err
}

// TemplateRenderError reports a description template that referenced fields
// the event did not have. It is recovered by emitting the template verbatim.
type TemplateRenderError struct {
	Template string
	Missing  []string
	// Reason is set instead of Missing when the template itself is malformed
	Reason string
}

func (e *TemplateRenderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("template %q: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("template %q references missing fields: %s", e.Template, strings.Join(e.Missing, ", "))
}

// TimestampParseError reports a high-level event whose time could not be
// parsed. It is recovered by substituting EpochSentinel.
type TimestampParseError struct {
	EventID int64
	Value   string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("unparseable timestamp %q, substituted %s", e.Value, EpochSentinel)
}

// ExtractorFailure wraps a fault raised inside an extractor.
type ExtractorFailure struct {
	Extractor string
	Cause     error
}

func (e *ExtractorFailure) Error() string {
	return fmt.Sprintf("extractor %s failed: %v", e.Extractor, e.Cause)
}

func (e *ExtractorFailure) Unwrap() error {
	return e.Cause
}
