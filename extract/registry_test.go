package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventrecon/core"
)

func TestBuiltin_GoogleSearchTerm(t *testing.T) {
	ev := &core.LowLevelEvent{Evidence: "https://google.com/search?q=test+query (Google Search)"}

	value, ok, err := Builtin().Extract("extract_google_search_term", ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "test query", value)
}

func TestResolve_UnknownExtractor(t *testing.T) {
	_, err := Builtin().Resolve("does_not_exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownExtractor)

	var cfgErr *core.RuleConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "does_not_exist")
}

func TestInvoke_RecoversPanic(t *testing.T) {
	r := New(map[string]Extractor{
		"explode": func(*core.LowLevelEvent) (string, bool) { panic("boom") },
	})

	value, ok, err := r.Extract("explode", &core.LowLevelEvent{})
	assert.Empty(t, value)
	assert.False(t, ok)

	var failure *core.ExtractorFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "explode", failure.Extractor)
	assert.Contains(t, failure.Error(), "boom")
}

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]Extractor{"a": Evidence}
	r := New(in)
	in["b"] = Evidence

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Len())
}

func TestWith_OverridesAndExtends(t *testing.T) {
	constant := func(*core.LowLevelEvent) (string, bool) { return "fixed", true }
	r := Builtin().With(map[string]Extractor{"get_evidence": constant, "custom": constant})

	v, ok, err := r.Extract("get_evidence", &core.LowLevelEvent{Evidence: "real"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fixed", v)
	assert.True(t, r.Has("custom"))
	assert.False(t, Builtin().Has("custom"))
}

func TestNames_SortedAndComplete(t *testing.T) {
	names := Builtin().Names()

	assert.IsIncreasing(t, names)
	assert.Len(t, names, 45)
	assert.Contains(t, names, "extract_webshell_attack_type")
	assert.Contains(t, names, "get_file_path")
}
