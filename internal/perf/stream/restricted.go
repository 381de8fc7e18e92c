package stream

import (
	"os"
	"path"
	"strings"
)

// DisableEnv forces the stream off when set to "1" or "true".
const DisableEnv = "DIALCTL_STREAM_DISABLED"

// DefaultRestrictedPatterns are hostname globs for sandboxed environments
// where outbound websockets are blocked.
var DefaultRestrictedPatterns = []string{
	"*.sandbox",
	"*.sandbox.*",
	"*.preview.*",
	"*.webcontainer.io",
}

// Restricted reports whether host runs in a restricted environment. This
// is the only place that decision is made: when it returns true the
// client never dials and reports StateDisabled instead.
//
// A nil patterns slice means DefaultRestrictedPatterns. Matching is
// case-insensitive and uses path.Match glob syntax.
func Restricted(host string, patterns []string) bool {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(DisableEnv))); v == "1" || v == "true" {
		return true
	}
	if patterns == nil {
		patterns = DefaultRestrictedPatterns
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, _ := path.Match(p, host); ok {
			return true
		}
	}
	return false
}
