package session

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Label renders a session's display label from its command text, collapsed
// to one line and truncated to the given display width (0 = no truncation).
func Label(s *Session, width int) string {
	label := strings.Join(strings.Fields(s.Command), " ")
	if width > 0 {
		label = runewidth.Truncate(label, width, "…")
	}
	return label
}

// DeduplicateLabels makes colliding labels distinct by suffixing every
// member of a duplicate group with its ordinal, preserving the original
// relative order. Unique labels pass through untouched.
func DeduplicateLabels(labels []string) []string {
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		counts[l]++
	}

	seen := make(map[string]int, len(labels))
	out := make([]string, len(labels))
	for i, l := range labels {
		if counts[l] < 2 {
			out[i] = l
			continue
		}
		seen[l]++
		out[i] = l + " (" + strconv.Itoa(seen[l]) + ")"
	}
	return out
}
