// Package normalize canonicalizes program output so it can be compared by exact equality.
package normalize

import (
	"strings"
)

// DefaultMarkers are the diagnostic markers stripped from execution output.
var DefaultMarkers = []string{"warning:", "note:", "jdoodle"}

// Normalizer drops diagnostic lines and canonicalizes whitespace.
type Normalizer struct {
	markers []string
}

// New creates a Normalizer. Markers are matched case-insensitively; nil uses DefaultMarkers.
func New(markers []string) *Normalizer {
	if markers == nil {
		markers = DefaultMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			lowered = append(lowered, m)
		}
	}
	return &Normalizer{markers: lowered}
}

// Output normalizes raw execution output.
func (n *Normalizer) Output(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || n.isDiagnostic(line) {
			continue
		}
		kept = append(kept, line)
	}
	return Canonical(strings.Join(kept, "\n"))
}

func (n *Normalizer) isDiagnostic(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range n.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Canonical converts CRLF to LF and trims surrounding whitespace.
// Used for test case input and expected output, which carry no diagnostics.
func Canonical(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
