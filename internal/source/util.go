package source

import (
	"strconv"
	"strings"
	"time"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// joinSnippet flattens the search snippet into a usable description when the
// API does not inline the full text.
func joinSnippet(s apiSnippet) string {
	parts := make([]string, 0, 2)
	if s.Requirement != "" {
		parts = append(parts, s.Requirement)
	}
	if s.Responsibility != "" {
		parts = append(parts, s.Responsibility)
	}
	return strings.Join(parts, "\n")
}
