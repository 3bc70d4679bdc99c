package core

import (
	"cmp"
	"errors"
	"slices"
)

// IssueKind classifies a recovered error
type IssueKind string

const (
	IssueRuleConfiguration IssueKind = "rule_configuration"
	IssueTemplateRender    IssueKind = "template_render"
	IssueTimestampParse    IssueKind = "timestamp_parse"
	IssueExtractorFailure  IssueKind = "extractor_failure"
	IssueRegexTimeout      IssueKind = "regex_timeout"
	IssueRuleFailure       IssueKind = "rule_failure"
)

// Issue is one class of recovered error. Repeats of the same issue are
// counted rather than listed.
type Issue struct {
	Kind         IssueKind `json:"kind"`
	RuleID       string    `json:"rule_id,omitempty"`
	Key          string    `json:"key,omitempty"`
	Message      string    `json:"message"`
	FirstEventID int64     `json:"first_event_id"`
	Count        int       `json:"count"`
}

type issueKey struct {
	kind    IssueKind
	ruleID  string
	key     string
	message string
}

// Report aggregates recovered errors. A Report is not safe for concurrent
// use; each rule worker owns one and they are merged after the workers finish.
type Report struct {
	issues map[issueKey]*Issue
	order  []issueKey
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{issues: make(map[issueKey]*Issue)}
}

// Add records one occurrence of an issue.
func (r *Report) Add(kind IssueKind, ruleID, key string, eventID int64, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.add(Issue{Kind: kind, RuleID: ruleID, Key: key, Message: msg, FirstEventID: eventID, Count: 1})
}

// AddError classifies err by its type and records it.
func (r *Report) AddError(ruleID, key string, eventID int64, err error) {
	r.Add(ClassifyError(err), ruleID, key, eventID, err)
}

func (r *Report) add(is Issue) {
	if r.issues == nil {
		r.issues = make(map[issueKey]*Issue)
	}
	k := issueKey{is.Kind, is.RuleID, is.Key, is.Message}
	if existing, ok := r.issues[k]; ok {
		existing.Count += is.Count
		if is.FirstEventID < existing.FirstEventID {
			existing.FirstEventID = is.FirstEventID
		}
		return
	}
	r.issues[k] = &is
	r.order = append(r.order, k)
}

// Merge folds other into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		r.add(*other.issues[k])
	}
}

// Issues returns the recorded issues in a deterministic order.
func (r *Report) Issues() []Issue {
	out := make([]Issue, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, *r.issues[k])
	}
	slices.SortFunc(out, func(a, b Issue) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.RuleID, b.RuleID),
			cmp.Compare(a.Key, b.Key),
			cmp.Compare(a.Message, b.Message),
		)
	})
	return out
}

// Counts returns the number of occurrences per issue kind.
func (r *Report) Counts() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, is := range r.issues {
		counts[is.Kind] += is.Count
	}
	return counts
}

// Total returns the number of recorded occurrences.
func (r *Report) Total() int {
	total := 0
	for _, is := range r.issues {
		total += is.Count
	}
	return total
}

// ClassifyError maps an error to its issue kind.
func ClassifyError(err error) IssueKind {
	var (
		cfgErr  *RuleConfigurationError
		tmplErr *TemplateRenderError
		tsErr   *TimestampParseError
		extErr  *ExtractorFailure
	)
	switch {
	case errors.As(err, &cfgErr):
		return IssueRuleConfiguration
	case errors.As(err, &tmplErr):
		return IssueTemplateRender
	case errors.As(err, &tsErr):
		return IssueTimestampParse
	case errors.As(err, &extErr):
		return IssueExtractorFailure
	default:
		return IssueRuleFailure
	}
}
