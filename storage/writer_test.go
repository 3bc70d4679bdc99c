package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"eventrecon/core"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleTimeline() []*core.HighLevelEvent {
	first := core.NewHighLevelEvent(205, "2024-01-15T10:30:00Z")
	first.Type = "Google Search"
	first.Description = "Searched Google for 'forensic <timeline>'"
	first.Category = "Web Activity"
	first.EvidenceSource = "https://www.google.com/search?q=forensic+%3Ctimeline%3E"
	first.Plugin = "sqlite/chrome_27_history"
	first.Files = []string{"OS:/History"}
	first.SetKey("search_term", "forensic <timeline>")
	first.Reasoning = &core.ReasoningArtefact{
		ID:              205,
		Description:     "Browser history entry",
		TriggeringEvent: map[string]string{"type": "Chrome History", "evidence": first.EvidenceSource},
		Keys:            map[string]string{"search_term": "forensic <timeline>"},
	}
	first.Supporting[core.SupportingBefore] = []core.EventSnapshot{{"id": int64(204), "evidence": "before"}}
	first.Merge(101)

	second := core.NewHighLevelEvent(300, "2024-01-15T10:31:12Z")
	second.Description = "Suspicious Named Error"
	second.Category = "Unknown"
	return []*core.HighLevelEvent{first, second}
}

var testRun = RunInfo{ID: "7f1c2a9e-0000-4000-8000-000000000001", StartedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat("out.json"))
	assert.Equal(t, FormatJSON, DetectFormat("out"))
	assert.Equal(t, FormatMsgpack, DetectFormat("out.msgpack"))
	assert.Equal(t, FormatSQLite, DetectFormat("case.DB"))
	assert.Equal(t, FormatSQLite, DetectFormat("case.sqlite"))
}

func TestNewWriter_Unknown(t *testing.T) {
	_, err := NewWriter("xml", "out.xml", Options{}, nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestJSONWriter(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w, err := NewWriter(FormatJSON, "/out/timeline.json", Options{Fs: fsys, Pretty: true}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), testRun, sampleTimeline()))

	data, err := afero.ReadFile(fsys, "/out/timeline.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    {")
	assert.Contains(t, string(data), "forensic <timeline>", "HTML must not be escaped")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.EqualValues(t, 205, decoded[0]["id"])
	assert.Equal(t, []any{float64(101)}, decoded[0]["merged_id"])
	assert.Equal(t, "Browser history entry", decoded[0]["reasoning"].(map[string]any)["description"])
	assert.Contains(t, decoded[0]["reasoning"], "test_event")
	assert.EqualValues(t, 300, decoded[1]["id"])
	assert.Nil(t, decoded[1]["reasoning"])

	tmp, err := afero.Glob(fsys, "/out/.*.tmp")
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestJSONWriter_EmptyTimeline(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w, err := NewWriter(FormatJSON, "timeline.json", Options{Fs: fsys}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), testRun, nil))

	data, err := afero.ReadFile(fsys, "timeline.json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestJSONWriter_CancelledContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w, err := NewWriter(FormatJSON, "timeline.json", Options{Fs: fsys}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Write(ctx, testRun, sampleTimeline()), context.Canceled)

	exists, err := afero.Exists(fsys, "timeline.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMsgpackWriter_RoundTripKeepsOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w, err := NewWriter(FormatMsgpack, "timeline.msgpack", Options{Fs: fsys}, nil)
	require.NoError(t, err)

	events := sampleTimeline()
	require.NoError(t, w.Write(context.Background(), testRun, events))

	data, err := afero.ReadFile(fsys, "timeline.msgpack")
	require.NoError(t, err)
	decoded, err := ReadMsgpack(bytes.NewReader(data))
	require.NoError(t, err)

	require.Len(t, decoded, 2)
	assert.Equal(t, int64(205), decoded[0].ID)
	assert.Equal(t, []int64{101}, decoded[0].MergedIDs)
	assert.Equal(t, events[0].Keys, decoded[0].Keys)
	assert.Equal(t, events[0].Reasoning, decoded[0].Reasoning)
	assert.Equal(t, int64(300), decoded[1].ID)
}

func TestSQLiteWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timeline.db")
	w, err := NewWriter(FormatSQLite, path, Options{}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, testRun, sampleTimeline()))

	second := RunInfo{ID: "second-run", StartedAt: testRun.StartedAt.Add(time.Hour)}
	require.NoError(t, w.Write(ctx, second, sampleTimeline()[:1]))

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, keys, merged_id, reasoning FROM high_level_events WHERE run_id = ? ORDER BY seq`, testRun.ID)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		id        int64
		keys      string
		merged    string
		reasoning *string
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.id, &r.keys, &r.merged, &r.reasoning))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 2)
	assert.Equal(t, int64(205), got[0].id)
	assert.JSONEq(t, `{"search_term":"forensic <timeline>"}`, got[0].keys)
	assert.JSONEq(t, `[101]`, got[0].merged)
	require.NotNil(t, got[0].reasoning)
	assert.Contains(t, *got[0].reasoning, "Browser history entry")
	assert.Equal(t, int64(300), got[1].id)
	assert.JSONEq(t, `[]`, got[1].merged)
	assert.Nil(t, got[1].reasoning)

	var total int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM high_level_events`).Scan(&total))
	assert.Equal(t, 3, total)
}
