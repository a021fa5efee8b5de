package util

import (
	"strings"
)

// SplitNonEmpty splits the string by separator and returns trimmed non-empty parts, or nil if there is none
//
// Ex: " a, ,b " by "," returns ["a", "b"]
func SplitNonEmpty(str string, sep string) []string {
	var parts []string
	for _, part := range strings.Split(str, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
