// Package strings parses comma-separated lists from query strings and
// environment variables.
package strings

import (
	"strings"
)

// SplitList splits every value on commas, trims whitespace, and drops empty
// and repeated entries. Order of first appearance is preserved.
//
//	SplitList("submitted, approved", "submitted,,")
//	// []string{"submitted", "approved"}
func SplitList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// SplitListLower is SplitList with case-insensitive deduplication; the
// returned entries are lowercased.
func SplitListLower(values ...string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	return SplitList(lowered...)
}
