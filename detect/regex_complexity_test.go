package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeRegexComplexity(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		safe    bool
		nested  bool
		depth   int
	}{
		{name: "plain", pattern: `Failed password for \w+`, safe: true},
		{name: "alternation repeated", pattern: `(a|b)*`, safe: true, depth: 1},
		{name: "nested plus", pattern: `(a+)+$`, nested: true, depth: 1},
		{name: "escaped class inside group", pattern: `(\w{2,})+`, nested: true, depth: 1},
		{name: "open ended bound on quantified group", pattern: `(a+){3,}`, nested: true, depth: 1},
		{name: "fixed bound on quantified group", pattern: `(a+){3}`, safe: true, depth: 1},
		{name: "group without outer quantifier", pattern: `(a{2})`, safe: true, depth: 1},
		{name: "paren inside character class", pattern: `[(]+`, safe: true},
		{name: "deep nesting", pattern: `((((a))))`, depth: 4},
		{name: "inner group carries quantifier outward", pattern: `((a*)b)+`, nested: true, depth: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AnalyzeRegexComplexity(tt.pattern)
			assert.Equal(t, tt.pattern, c.Pattern)
			assert.Equal(t, tt.safe, c.IsSafe(), "issues: %v", c.Issues)
			assert.Equal(t, tt.nested, c.HasNestedQuantifiers)
			assert.Equal(t, tt.depth, c.NestingDepth)
		})
	}
}

func TestAnalyzeRegexComplexity_Limits(t *testing.T) {
	long := AnalyzeRegexComplexity(strings.Repeat("a", MaxRegexLength+1))
	assert.False(t, long.IsSafe())
	assert.Contains(t, long.Issues[0], "pattern length")

	rep := AnalyzeRegexComplexity(`a{1,5000}`)
	assert.False(t, rep.IsSafe())
	assert.Contains(t, rep.Issues[0], "repetition")

	assert.True(t, AnalyzeRegexComplexity(`a{1,1000}`).IsSafe())
}
