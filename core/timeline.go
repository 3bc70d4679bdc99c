package core

import (
	"context"
	"fmt"
)

// DefaultContextWindow is how many neighbours on each side are kept as supporting context
const DefaultContextWindow = 5

// ctxCheckInterval is how many events are scanned between context checks
const ctxCheckInterval = 1024

// LowLevelTimeline is a read-only arena of low-level events indexed by id.
// Ids are dense: the event with id i sits at index i.
type LowLevelTimeline struct {
	events []*LowLevelEvent
	window int
}

// TimelineOption configures a LowLevelTimeline
type TimelineOption func(*LowLevelTimeline)

// WithContextWindow sets the number of neighbours on each side returned by SupportingWindow.
func WithContextWindow(n int) TimelineOption {
	return func(t *LowLevelTimeline) {
		if n >= 0 {
			t.window = n
		}
	}
}

// NewLowLevelTimeline builds a timeline, assigning ids 0..n-1 in input order.
// The events are owned by the timeline from then on.
func NewLowLevelTimeline(events []*LowLevelEvent, opts ...TimelineOption) *LowLevelTimeline {
	t := &LowLevelTimeline{
		events: make([]*LowLevelEvent, len(events)),
		window: DefaultContextWindow,
	}
	for i, ev := range events {
		ev.ID = int64(i)
		t.events[i] = ev
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len returns the number of events
func (t *LowLevelTimeline) Len() int {
	return len(t.events)
}

// Get returns the event with the given id.
func (t *LowLevelTimeline) Get(id int64) (*LowLevelEvent, bool) {
	if id < 0 || id >= int64(len(t.events)) {
		return nil, false
	}
	return t.events[id], true
}

// Events returns the events in id order. The slice must not be modified.
func (t *LowLevelTimeline) Events() []*LowLevelEvent {
	return t.events
}

// FindMatchesInRange scans events with startID <= id < endID in ascending id
// order and returns those accepted by match. It is a single linear pass; the
// first error from match aborts the scan.
func (t *LowLevelTimeline) FindMatchesInRange(ctx context.Context, startID, endID int64, match func(*LowLevelEvent) (bool, error)) ([]*LowLevelEvent, error) {
	if startID < 0 {
		startID = 0
	}
	if endID > int64(len(t.events)) {
		endID = int64(len(t.events))
	}
	var matches []*LowLevelEvent
	for id := startID; id < endID; id++ {
		if (id-startID)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return matches, fmt.Errorf("scan aborted at event %d: %w", id, err)
			}
		}
		ev := t.events[id]
		ok, err := match(ev)
		if err != nil {
			return matches, err
		}
		if ok {
			matches = append(matches, ev)
		}
	}
	return matches, nil
}

// SupportingWindow returns snapshots of up to window events before and after
// id, by id ordering, keyed by SupportingBefore and SupportingAfter.
func (t *LowLevelTimeline) SupportingWindow(id int64) map[string][]EventSnapshot {
	n := int64(len(t.events))
	w := int64(t.window)

	before := make([]EventSnapshot, 0, t.window)
	for i := max(0, id-w); i < id && i < n; i++ {
		before = append(before, t.events[i].Snapshot())
	}
	after := make([]EventSnapshot, 0, t.window)
	for i := max(0, id+1); i <= id+w && i < n; i++ {
		after = append(after, t.events[i].Snapshot())
	}
	return map[string][]EventSnapshot{
		SupportingBefore: before,
		SupportingAfter:  after,
	}
}
