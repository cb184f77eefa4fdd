package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

var varRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Substitute resolves $variable references in a step input against the
// variables earlier steps stored, returning a deep copy; the original input
// is never mutated. A string that is exactly one reference ("$result1") is
// replaced by the stored value itself, preserving its type. References
// embedded in longer strings are rendered with their fmt representation.
// Unresolvable references are left as the literal token.
func Substitute(input map[string]any, vars map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = substituteValue(v, vars)
	}
	return out
}

func substituteValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return substituteString(val, vars)
	case map[string]any:
		return Substitute(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, vars)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, vars map[string]any) any {
	if !strings.Contains(s, "$") { // fast path: no reference markers
		return s
	}

	// Whole-value reference keeps the stored value's type.
	if m := varRe.FindStringSubmatch(s); m != nil && m[0] == s {
		if stored, ok := vars[m[1]]; ok {
			return stored
		}
		return s
	}

	return varRe.ReplaceAllStringFunc(s, func(token string) string {
		name := token[1:]
		if stored, ok := vars[name]; ok {
			return fmt.Sprintf("%v", stored)
		}
		return token
	})
}

// unresolved returns the reference names in input that have no binding in
// vars. Used by the engine to warn about pass-through tokens.
func unresolved(input map[string]any, vars map[string]any) []string {
	var missing []string
	seen := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range varRe.FindAllStringSubmatch(val, -1) {
				if _, ok := vars[m[1]]; !ok && !seen[m[1]] {
					seen[m[1]] = true
					missing = append(missing, m[1])
				}
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(input)
	return missing
}
