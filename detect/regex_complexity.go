package detect

import (
	"fmt"
	"regexp"
	"strconv"
)

// Complexity limits for keyword regexes
const (
	MaxRegexLength  = 1000 // Maximum pattern length before it is flagged
	MaxNestingDepth = 3    // Maximum group nesting depth
	MaxRepetition   = 1000 // Largest bound accepted in {n,m}
)

var repetitionRange = regexp.MustCompile(`\{(\d+)(?:,(\d*))?\}`)

// RegexComplexity is the static analysis of one keyword pattern.
type RegexComplexity struct {
	Pattern              string
	NestingDepth         int
	HasNestedQuantifiers bool
	// Issues is empty for a pattern considered safe
	Issues []string
}

// IsSafe reports whether no issue was found
func (r *RegexComplexity) IsSafe() bool {
	return len(r.Issues) == 0
}

// AnalyzeRegexComplexity looks for constructs prone to catastrophic
// backtracking. The match timeout still applies to every pattern; this only
// lets rule authors find slow patterns before a run.
func AnalyzeRegexComplexity(pattern string) *RegexComplexity {
	result := &RegexComplexity{Pattern: pattern}

	if len(pattern) > MaxRegexLength {
		result.Issues = append(result.Issues,
			fmt.Sprintf("pattern length (%d) exceeds maximum (%d)", len(pattern), MaxRegexLength))
	}

	nested, depth := scanGroups(pattern)
	result.NestingDepth = depth
	result.HasNestedQuantifiers = nested
	if nested {
		result.Issues = append(result.Issues, "quantified group contains a quantifier, e.g. (a+)+")
	}
	if depth > MaxNestingDepth {
		result.Issues = append(result.Issues,
			fmt.Sprintf("group nesting depth (%d) exceeds maximum (%d)", depth, MaxNestingDepth))
	}

	for _, m := range repetitionRange.FindAllStringSubmatch(pattern, -1) {
		if exceedsRepetition(m[1]) || exceedsRepetition(m[2]) {
			result.Issues = append(result.Issues,
				fmt.Sprintf("repetition %s exceeds maximum (%d)", m[0], MaxRepetition))
			break
		}
	}

	return result
}

// scanGroups walks the pattern once, tracking for each open group whether it
// contains a quantifier. A group that does and is itself followed by an
// unbounded quantifier is a nested quantifier.
func scanGroups(pattern string) (nested bool, maxDepth int) {
	var stack []bool // per open group: contains a quantifier
	inClass := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '(':
			stack = append(stack, false)
			maxDepth = max(maxDepth, len(stack))
		case c == ')':
			if len(stack) == 0 {
				continue
			}
			inner := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			quantified := i+1 < len(pattern) && isUnboundedQuantifier(pattern[i+1:])
			if inner && quantified {
				nested = true
			}
			if len(stack) > 0 && (inner || quantified) {
				stack[len(stack)-1] = true
			}
		case c == '+' || c == '*' || c == '{':
			if len(stack) > 0 {
				stack[len(stack)-1] = true
			}
		}
	}
	return nested, maxDepth
}

func isUnboundedQuantifier(rest string) bool {
	switch rest[0] {
	case '+', '*':
		return true
	case '{':
		m := repetitionRange.FindStringSubmatchIndex(rest)
		// {n,} has an empty upper bound
		return m != nil && m[0] == 0 && m[4] >= 0 && m[4] == m[5]
	}
	return false
}

func exceedsRepetition(bound string) bool {
	if bound == "" {
		return false
	}
	n, err := strconv.Atoi(bound)
	return err != nil || n > MaxRepetition
}
