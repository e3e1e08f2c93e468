// Package strings provides small string-slice utilities shared by
// configuration parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim trims whitespace from each element and drops empty strings
// and duplicates, keeping the first occurrence's position. Used to normalize
// space-separated lists such as scope sets.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
