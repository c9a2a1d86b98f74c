package agent

import (
	"regexp"
	"strings"

	"echovault/internal/models"
)

var meetingKeywords = []string{"meeting", "call", "sync", "standup", "interview"}

var goalKeywords = []string{
	"goal", "goals", "get better", "improve", "practice",
	"train", "learn", "want to", "plan to", "trying to",
}

// isMeetingMemory reports whether the memory looks like a scheduled meeting.
// Keyword matching over summary, raw text and topics; embeddings are not
// consulted here, the poller has no vector access.
func isMeetingMemory(mem models.Memory) bool {
	haystack := strings.ToLower(mem.Summary + " " + mem.RawText + " " + strings.Join(mem.Topics, " "))
	for _, kw := range meetingKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// isGoalMemory reports whether the memory expresses a personal goal or
// aspiration. Tasks are included in the haystack since extraction often files
// "practice X daily" there.
func isGoalMemory(mem models.Memory) bool {
	parts := []string{mem.Summary, mem.RawText, strings.Join(mem.Topics, " "), strings.Join(mem.Tasks, " ")}
	haystack := strings.ToLower(strings.Join(parts, " "))
	for _, kw := range goalKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

var goalFocusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)get better at ([a-z0-9 \-]+)`),
	regexp.MustCompile(`(?i)improve (?:my |at )?([a-z0-9 \-]+)`),
	regexp.MustCompile(`(?i)learn (?:to )?([a-z0-9 \-]+)`),
	regexp.MustCompile(`(?i)practice ([a-z0-9 \-]+)`),
}

// extractGoalFocus pulls a short free-text description of what the goal is
// about, or "" when no pattern matches.
func extractGoalFocus(text string) string {
	for _, pat := range goalFocusPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			focus := strings.TrimSpace(m[1])
			// Clip trailing clauses so "improve my serve because ..." keeps
			// only the subject.
			for _, sep := range []string{" because", " so ", " and ", ",", "."} {
				if idx := strings.Index(focus, sep); idx > 0 {
					focus = focus[:idx]
				}
			}
			if focus = strings.TrimSpace(focus); focus != "" {
				return focus
			}
		}
	}
	return ""
}
