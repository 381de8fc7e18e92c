package util

import "strings"

// NormalizeKey lowercases and trims a string for use as a consistent lookup
// key. Country codes, source names and config keys all go through it.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitList splits a comma-separated list, trimming each item and dropping
// empty ones. It returns nil when nothing is left.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
