package detect

import (
	"fmt"
	"slices"
	"strings"

	"eventrecon/core"
)

// RenderTemplate substitutes {name} placeholders in tmpl with values from
// fields. {keys[name]} and {provenance[name]} index into nested maps, and
// {{ and }} produce literal braces. A format spec after ':' or a conversion
// after '!' is accepted and ignored.
//
// When any placeholder cannot be resolved, or the template is malformed, tmpl
// is returned unchanged together with a *core.TemplateRenderError.
func RenderTemplate(tmpl string, fields map[string]any) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var (
		b       strings.Builder
		missing []string
	)
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && strings.HasPrefix(tmpl[i:], "{{"):
			b.WriteByte('{')
			i += 2
		case c == '}' && strings.HasPrefix(tmpl[i:], "}}"):
			b.WriteByte('}')
			i += 2
		case c == '}':
			return tmpl, &core.TemplateRenderError{Template: tmpl, Reason: "single '}' encountered"}
		case c == '{':
			end := placeholderEnd(tmpl, i+1)
			if end < 0 {
				return tmpl, &core.TemplateRenderError{Template: tmpl, Reason: "unmatched '{'"}
			}
			field := fieldName(tmpl[i+1 : end])
			if v, ok := lookupField(field, fields); ok {
				b.WriteString(v)
			} else if !slices.Contains(missing, field) {
				missing = append(missing, field)
			}
			i = end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	if len(missing) > 0 {
		return tmpl, &core.TemplateRenderError{Template: tmpl, Missing: missing}
	}
	return b.String(), nil
}

// placeholderEnd returns the index of the '}' closing a placeholder that
// starts at from, or -1. Brackets may contain braces.
func placeholderEnd(tmpl string, from int) int {
	depth := 0
	for j := from; j < len(tmpl); j++ {
		switch tmpl[j] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '{':
			if depth == 0 {
				return -1
			}
		case '}':
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// fieldName strips a trailing conversion or format spec outside brackets.
func fieldName(placeholder string) string {
	depth := 0
	for j := 0; j < len(placeholder); j++ {
		switch placeholder[j] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '!', ':':
			if depth == 0 {
				return placeholder[:j]
			}
		}
	}
	return placeholder
}

func lookupField(field string, fields map[string]any) (string, bool) {
	base, rest, _ := strings.Cut(field, "[")
	if base == "" {
		return "", false
	}
	v, ok := fields[base]
	if !ok {
		return "", false
	}
	if rest == "" {
		return formatValue(v), true
	}

	rest = "[" + rest
	for rest != "" {
		if rest[0] != '[' {
			return "", false
		}
		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			return "", false
		}
		index := rest[1:closing]
		rest = rest[closing+1:]

		switch m := v.(type) {
		case map[string]string:
			v, ok = m[index]
		case map[string]any:
			v, ok = m[index]
		default:
			ok = false
		}
		if !ok {
			return "", false
		}
	}
	return formatValue(v), true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
