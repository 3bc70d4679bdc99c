package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authEvent(id int64, ts string) *HighLevelEvent {
	ev := NewHighLevelEvent(id, ts)
	ev.EvidenceSource = "auth.log"
	ev.Type = "ssh"
	ev.Description = "Failed login"
	ev.Category = "auth"
	ev.Files = []string{"/var/log/auth.log"}
	ev.SetKey("user", "root")
	return ev
}

func TestMergeTimelines_FoldsExactDuplicates(t *testing.T) {
	a := authEvent(101, "2023-05-01T10:00:00Z")
	b := authEvent(205, "2023-05-01T11:30:00Z")

	report := NewReport()
	merged := MergeTimelines([][]*HighLevelEvent{{a}, {b}}, report)

	require.Len(t, merged, 1)
	assert.Equal(t, int64(101), merged[0].ID)
	assert.Equal(t, []int64{205}, merged[0].MergedIDs)
	assert.Zero(t, report.Total())
}

func TestMergeTimelines_KeepsDifferentKeys(t *testing.T) {
	a := authEvent(1, "2023-05-01T10:00:00Z")
	b := authEvent(2, "2023-05-01T10:00:01Z")
	b.SetKey("user", "admin")

	merged := MergeTimelines([][]*HighLevelEvent{{a, b}}, nil)

	require.Len(t, merged, 2)
	assert.Empty(t, merged[0].MergedIDs)
	assert.Empty(t, merged[1].MergedIDs)
}

func TestMergeTimelines_ChronologicalOrder(t *testing.T) {
	late := NewHighLevelEvent(1, "2023-05-03T00:00:00Z")
	late.Type = "late"
	early := NewHighLevelEvent(2, "2023-05-01T00:00:00Z")
	early.Type = "early"
	middle := NewHighLevelEvent(3, "2023-05-02T00:00:00+00:00")
	middle.Type = "middle"

	merged := MergeTimelines([][]*HighLevelEvent{{late}, {early, middle}}, nil)

	require.Len(t, merged, 3)
	assert.Equal(t, "early", merged[0].Type)
	assert.Equal(t, "middle", merged[1].Type)
	assert.Equal(t, "late", merged[2].Type)
}

func TestMergeTimelines_TieBreakByID(t *testing.T) {
	a := authEvent(7, "2023-05-01T10:00:00Z")
	b := authEvent(3, "2023-05-01T10:00:00Z")

	merged := MergeTimelines([][]*HighLevelEvent{{a, b}}, nil)

	require.Len(t, merged, 1)
	assert.Equal(t, int64(3), merged[0].ID)
	assert.Equal(t, []int64{7}, merged[0].MergedIDs)
}

func TestMergeTimelines_Idempotent(t *testing.T) {
	events := []*HighLevelEvent{
		authEvent(1, "2023-05-01T10:00:00Z"),
		authEvent(2, "2023-05-01T11:00:00Z"),
		NewHighLevelEvent(3, "2023-05-01T09:00:00Z"),
	}
	first := MergeTimelines([][]*HighLevelEvent{events}, nil)
	snapshot := make([]HighLevelEvent, len(first))
	for i, ev := range first {
		snapshot[i] = *ev
	}

	second := MergeTimelines([][]*HighLevelEvent{first}, nil)

	require.Len(t, second, len(snapshot))
	for i, ev := range second {
		assert.Equal(t, snapshot[i].ID, ev.ID)
		assert.Equal(t, snapshot[i].MergedIDs, ev.MergedIDs)
		assert.Equal(t, snapshot[i].TimeMin, ev.TimeMin)
	}
}

func TestMergeTimelines_CommutativeOverCollections(t *testing.T) {
	build := func() ([]*HighLevelEvent, []*HighLevelEvent) {
		x := []*HighLevelEvent{authEvent(10, "2023-05-01T10:00:00Z"), NewHighLevelEvent(11, "2023-05-02T00:00:00Z")}
		y := []*HighLevelEvent{authEvent(20, "2023-05-01T10:00:00Z"), NewHighLevelEvent(21, "2023-04-30T00:00:00Z")}
		return x, y
	}

	x1, y1 := build()
	forward := MergeTimelines([][]*HighLevelEvent{x1, y1}, nil)
	x2, y2 := build()
	backward := MergeTimelines([][]*HighLevelEvent{y2, x2}, nil)

	require.Len(t, forward, len(backward))
	for i := range forward {
		assert.Equal(t, forward[i].ID, backward[i].ID)
		assert.Equal(t, forward[i].MergedIDs, backward[i].MergedIDs)
	}
	assert.Equal(t, []int64{20}, forward[1].MergedIDs)
}

func TestMergeTimelines_SameEventDifferentKeysIsCommutative(t *testing.T) {
	build := func() (*HighLevelEvent, *HighLevelEvent) {
		visit := func() *HighLevelEvent {
			ev := NewHighLevelEvent(5, "2023-05-01T10:00:00Z")
			ev.Type, ev.Description, ev.Category = "web", "Visit", "web"
			return ev
		}
		x, y := visit(), visit()
		x.SetKey("url", "a")
		y.SetKey("domain", "b")
		return x, y
	}

	x1, y1 := build()
	forward := MergeTimelines([][]*HighLevelEvent{{x1}, {y1}}, nil)
	x2, y2 := build()
	backward := MergeTimelines([][]*HighLevelEvent{{y2}, {x2}}, nil)

	require.Len(t, forward, 2)
	require.Len(t, backward, 2)
	for i := range forward {
		assert.Equal(t, forward[i].Keys, backward[i].Keys)
	}
}

func TestMergeTimelines_SameEventDuplicateKeepsSameReasoning(t *testing.T) {
	build := func(refs ...string) *HighLevelEvent {
		ev := authEvent(7, "2023-05-01T10:00:00Z")
		ev.Reasoning = &ReasoningArtefact{ID: 7, Description: "sshd failure", References: refs}
		return ev
	}

	forward := MergeTimelines([][]*HighLevelEvent{{build("https://a.example")}, {build("https://b.example")}}, nil)
	backward := MergeTimelines([][]*HighLevelEvent{{build("https://b.example")}, {build("https://a.example")}}, nil)

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, []string{"https://a.example"}, forward[0].Reasoning.References)
	assert.Equal(t, forward[0].Reasoning.References, backward[0].Reasoning.References)
	assert.Empty(t, forward[0].MergedIDs)
}

func TestMergeTimelines_MalformedTimestamp(t *testing.T) {
	bad := NewHighLevelEvent(5, "0000-00-00T00:00:00")
	bad.Type = "bad"
	epochEvent := NewHighLevelEvent(9, EpochSentinel)
	epochEvent.Type = "epoch"
	later := NewHighLevelEvent(1, "2001-01-01T00:00:00Z")
	later.Type = "later"

	report := NewReport()
	merged := MergeTimelines([][]*HighLevelEvent{{later, epochEvent, bad}}, report)

	require.Len(t, merged, 3)
	assert.Equal(t, "bad", merged[0].Type)
	assert.Equal(t, EpochSentinel, merged[0].TimeMin)
	assert.Equal(t, EpochSentinel, merged[0].TimeMax)
	assert.Equal(t, "epoch", merged[1].Type)
	assert.Equal(t, "later", merged[2].Type)

	assert.Equal(t, 1, report.Counts()[IssueTimestampParse])
	issues := report.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, int64(5), issues[0].FirstEventID)
}

func TestMergeTimelines_TimeMaxNotBeforeTimeMin(t *testing.T) {
	ev := NewHighLevelEvent(1, "2023-05-01T10:00:00Z")
	ev.TimeMax = "garbage"

	merged := MergeTimelines([][]*HighLevelEvent{{ev}}, nil)

	require.Len(t, merged, 1)
	assert.Equal(t, "2023-05-01T10:00:00Z", merged[0].TimeMax)
}

func TestMergeTimelines_CarriesTransitiveMergedIDs(t *testing.T) {
	kept := authEvent(1, "2023-05-01T10:00:00Z")
	dup := authEvent(2, "2023-05-01T11:00:00Z")
	dup.MergedIDs = []int64{3, 1}

	merged := MergeTimelines([][]*HighLevelEvent{{kept, dup}}, nil)

	require.Len(t, merged, 1)
	assert.Equal(t, []int64{2, 3}, merged[0].MergedIDs)
}

func TestMergeTimelines_Empty(t *testing.T) {
	assert.Empty(t, MergeTimelines(nil, nil))
	assert.Empty(t, MergeTimelines([][]*HighLevelEvent{nil, {}}, nil))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2023-05-01T10:00:00Z", true},
		{"2023-05-01T10:00:00.123456+00:00", true},
		{"2023-05-01T10:00:00", true},
		{"2023-05-01 10:00:00", true},
		{"2023-05-01", true},
		{"0000-00-00T00:00:00", false},
		{"0000-01-01T00:00:00Z", false},
		{"not a time", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
