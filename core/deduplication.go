package core

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// EpochSentinel replaces timestamps that cannot be parsed
const EpochSentinel = "1970-01-01T00:00:00Z"

var epoch = time.Unix(0, 0).UTC()

// timestampLayouts are the ISO-8601 shapes found in plaso output, tried in order.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Year 0 is rejected.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 1 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

type normalizedEvent struct {
	event *HighLevelEvent
	at    time.Time
	fp    string
}

// MergeTimelines merges per-rule collections into one chronological timeline.
//
// Phase A normalizes timestamps: an unparseable TimeMin replaces both TimeMin
// and TimeMax with EpochSentinel and is recorded in report. Events are then
// ordered by time, id, and finally by their content so the result does not
// depend on the order of collections.
//
// Phase B scans that order once. The first event of every exact-match class
// is kept; each later duplicate is dropped and its id folded into the kept
// event's MergedIDs.
//
// Input events are modified in place. Running MergeTimelines on its own
// output returns it unchanged.
func MergeTimelines(collections [][]*HighLevelEvent, report *Report) []*HighLevelEvent {
	if report == nil {
		report = NewReport()
	}

	total := 0
	for _, c := range collections {
		total += len(c)
	}
	all := make([]normalizedEvent, 0, total)
	for _, c := range collections {
		for _, ev := range c {
			if ev == nil {
				continue
			}
			all = append(all, normalizedEvent{event: ev, at: normalizeTime(ev, report), fp: Fingerprint(ev)})
		}
	}

	slices.SortStableFunc(all, compareNormalized)

	buckets := make(map[string][]*HighLevelEvent, len(all))
	merged := make([]*HighLevelEvent, 0, len(all))
	for _, n := range all {
		ev, fp := n.event, n.fp
		if kept := findExact(buckets[fp], ev); kept != nil {
			kept.Merge(ev.ID)
			for _, id := range ev.MergedIDs {
				kept.Merge(id)
			}
			continue
		}
		buckets[fp] = append(buckets[fp], ev)
		merged = append(merged, ev)
	}
	return merged
}

func findExact(candidates []*HighLevelEvent, ev *HighLevelEvent) *HighLevelEvent {
	for _, c := range candidates {
		if ExactMatch(c, ev) {
			return c
		}
	}
	return nil
}

// normalizeTime parses TimeMin, substituting the sentinel on failure, and
// keeps TimeMin <= TimeMax.
func normalizeTime(ev *HighLevelEvent, report *Report) time.Time {
	at, ok := ParseTimestamp(ev.TimeMin)
	if !ok {
		report.AddError("", "", ev.ID, &TimestampParseError{EventID: ev.ID, Value: ev.TimeMin})
		ev.TimeMin = EpochSentinel
		ev.TimeMax = EpochSentinel
		return epoch
	}
	if maxAt, ok := ParseTimestamp(ev.TimeMax); !ok || maxAt.Before(at) {
		ev.TimeMax = ev.TimeMin
	}
	return at
}

func compareNormalized(a, b normalizedEvent) int {
	if c := a.at.Compare(b.at); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.event.ID, b.event.ID),
		cmp.Compare(a.event.Type, b.event.Type),
		cmp.Compare(a.event.Description, b.event.Description),
		cmp.Compare(a.event.Category, b.event.Category),
		cmp.Compare(a.event.EvidenceSource, b.event.EvidenceSource),
		cmp.Compare(reasoningDescription(a.event), reasoningDescription(b.event)),
		// files and keys, through the fingerprint that covers them
		cmp.Compare(a.fp, b.fp),
		cmp.Compare(a.event.TimeMax, b.event.TimeMax),
		cmp.Compare(a.event.Plugin, b.event.Plugin),
		slices.Compare(reasoningReferences(a.event), reasoningReferences(b.event)),
	)
}

func reasoningReferences(e *HighLevelEvent) []string {
	if e.Reasoning == nil {
		return nil
	}
	return e.Reasoning.References
}

func reasoningDescription(e *HighLevelEvent) string {
	if e.Reasoning == nil {
		return ""
	}
	return e.Reasoning.Description
}
