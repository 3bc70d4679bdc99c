package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := authEvent(1, "2023-05-01T10:00:00Z")
	b := authEvent(2, "2024-01-01T00:00:00Z")
	b.Plugin = "other"
	b.Reasoning = &ReasoningArtefact{Description: "different"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	a := NewHighLevelEvent(1, "")
	a.Type = "ab"
	a.Description = "c"
	b := NewHighLevelEvent(1, "")
	b.Type = "a"
	b.Description = "bc"

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a := NewHighLevelEvent(1, "")
	a.SetKey("user", "root")
	a.SetKey("host", "web01")
	b := NewHighLevelEvent(2, "")
	b.SetKey("host", "web01")
	b.SetKey("user", "root")

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestExactMatch(t *testing.T) {
	base := func() *HighLevelEvent { return authEvent(1, "2023-05-01T10:00:00Z") }

	tests := []struct {
		name   string
		mutate func(*HighLevelEvent)
		want   bool
	}{
		{"identical", func(*HighLevelEvent) {}, true},
		{"different id and time", func(e *HighLevelEvent) { e.ID = 9; e.TimeMin = "2020-01-01T00:00:00Z" }, true},
		{"evidence source", func(e *HighLevelEvent) { e.EvidenceSource = "syslog" }, false},
		{"type", func(e *HighLevelEvent) { e.Type = "sudo" }, false},
		{"description", func(e *HighLevelEvent) { e.Description = "x" }, false},
		{"category", func(e *HighLevelEvent) { e.Category = "web" }, false},
		{"files order", func(e *HighLevelEvent) { e.Files = []string{"a", "/var/log/auth.log"} }, false},
		{"extra key", func(e *HighLevelEvent) { e.SetKey("ip", "10.0.0.1") }, false},
		{"plugin ignored", func(e *HighLevelEvent) { e.Plugin = "syslog" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base()
			tt.mutate(other)
			assert.Equal(t, tt.want, ExactMatch(base(), other))
			if tt.want {
				assert.Equal(t, Fingerprint(base()), Fingerprint(other))
			}
		})
	}
}

func TestExactMatch_NilAndEmptyCollections(t *testing.T) {
	a := &HighLevelEvent{Type: "x"}
	b := NewHighLevelEvent(1, "")
	b.Type = "x"

	assert.True(t, ExactMatch(a, b))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}
