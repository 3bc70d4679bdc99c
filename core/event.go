package core

import (
	"maps"
	"slices"
)

// Supporting context labels
const (
	SupportingBefore = "before"
	SupportingAfter  = "after"
)

// EventSnapshot is a read-only copy of a low-level event used as supporting
// context. Callers must not mutate it.
type EventSnapshot map[string]any

// LowLevelEvent is one forensic artifact occurrence taken from a timeline.
// It is owned by the LowLevelTimeline and never modified after ingestion.
type LowLevelEvent struct {
	// ID is assigned at ingestion, monotonically, starting at 0
	ID int64 `json:"id" msgpack:"id"`
	// Timestamp is the ISO-8601 time as found in the source, possibly malformed
	Timestamp string `json:"date_time_min" msgpack:"date_time_min"`
	// Type is the artifact/source type, e.g. "Chrome History"
	Type string `json:"type" msgpack:"type"`
	// Path is the file the artifact was extracted from
	Path string `json:"path" msgpack:"path"`
	// Evidence is the free-text description; extractors work on it
	Evidence string `json:"evidence" msgpack:"evidence"`
	// Provenance holds the remaining source columns
	Provenance map[string]string `json:"provenance,omitempty" msgpack:"provenance,omitempty"`
	// Plugin is the parser/plugin that produced the entry
	Plugin string `json:"plugin" msgpack:"plugin"`
}

// Fields returns the field map templates are rendered against.
func (e *LowLevelEvent) Fields() map[string]any {
	return map[string]any{
		"id":            e.ID,
		"date_time_min": e.Timestamp,
		"date_time_max": e.Timestamp,
		"type":          e.Type,
		"path":          e.Path,
		"evidence":      e.Evidence,
		"plugin":        e.Plugin,
		"provenance":    maps.Clone(e.Provenance),
	}
}

// Snapshot returns a detached copy of the event.
func (e *LowLevelEvent) Snapshot() EventSnapshot {
	return EventSnapshot(e.Fields())
}

// ReasoningArtefact explains why a HighLevelEvent was raised.
type ReasoningArtefact struct {
	ID              int64             `json:"id" msgpack:"id"`
	Description     string            `json:"description" msgpack:"description"`
	TriggeringEvent map[string]string `json:"test_event" msgpack:"test_event"`
	Provenance      map[string]string `json:"provenance" msgpack:"provenance"`
	Keys            map[string]string `json:"keys" msgpack:"keys"`
	References      []string          `json:"references" msgpack:"references"`
}

// HighLevelEvent is an event reconstructed from a single triggering
// low-level event by a rule. Only MergedIDs changes after construction.
type HighLevelEvent struct {
	ID             int64                      `json:"id" msgpack:"id"`
	TimeMin        string                     `json:"date_time_min" msgpack:"date_time_min"`
	TimeMax        string                     `json:"date_time_max" msgpack:"date_time_max"`
	EvidenceSource string                     `json:"evidence_source" msgpack:"evidence_source"`
	Type           string                     `json:"type" msgpack:"type"`
	Description    string                     `json:"description" msgpack:"description"`
	Category       string                     `json:"category" msgpack:"category"`
	Plugin         string                     `json:"plugin" msgpack:"plugin"`
	Files          []string                   `json:"files" msgpack:"files"`
	Keys           map[string]string          `json:"keys" msgpack:"keys"`
	Reasoning      *ReasoningArtefact         `json:"reasoning" msgpack:"reasoning"`
	Supporting     map[string][]EventSnapshot `json:"supporting" msgpack:"supporting"`
	MergedIDs      []int64                    `json:"merged_id" msgpack:"merged_id"`
}

// NewHighLevelEvent creates an event with its time range collapsed to a single instant.
func NewHighLevelEvent(id int64, timestamp string) *HighLevelEvent {
	return &HighLevelEvent{
		ID:         id,
		TimeMin:    timestamp,
		TimeMax:    timestamp,
		Files:      []string{},
		Keys:       map[string]string{},
		Supporting: map[string][]EventSnapshot{},
		MergedIDs:  []int64{},
	}
}

// SetKey records an extracted key.
func (e *HighLevelEvent) SetKey(name, value string) {
	if e.Keys == nil {
		e.Keys = map[string]string{}
	}
	e.Keys[name] = value
}

// Merge folds another event id into this one. The event's own id and ids
// already present are ignored, so the call is idempotent.
func (e *HighLevelEvent) Merge(id int64) bool {
	if id == e.ID || slices.Contains(e.MergedIDs, id) {
		return false
	}
	e.MergedIDs = append(e.MergedIDs, id)
	return true
}

// Fields returns the field map templates are rendered against. Extracted keys
// are reachable both as {name} and {keys[name]}; top-level fields win on
// name clashes.
func (e *HighLevelEvent) Fields() map[string]any {
	fields := make(map[string]any, 10+len(e.Keys))
	for k, v := range e.Keys {
		fields[k] = v
	}
	fields["id"] = e.ID
	fields["date_time_min"] = e.TimeMin
	fields["date_time_max"] = e.TimeMax
	fields["evidence_source"] = e.EvidenceSource
	fields["type"] = e.Type
	fields["description"] = e.Description
	fields["category"] = e.Category
	fields["plugin"] = e.Plugin
	fields["files"] = slices.Clone(e.Files)
	fields["keys"] = maps.Clone(e.Keys)
	return fields
}
