package agent

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"echovault/internal/models"
)

const (
	icsProdID        = "-//EchoVault//Meeting Agent//EN"
	icsUIDDomain     = "echovault.local"
	defaultStartHHMM = "09:00"
	meetingDuration  = 30 * time.Minute
)

// eventWindowPattern matches "YYYY-MM-DD" with an optional "HH:MM" separated
// by a space or a literal T.
var eventWindowPattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})(?:[ T](\d{1,2}:\d{2}))?`)

// extractEventWindow derives a concrete [start, end) window for a meeting
// memory. A date in the text wins; a missing time defaults to 09:00. With no
// date at all the meeting is assumed to be "tomorrow" relative to when the
// memory was captured, again at 09:00 local time.
func extractEventWindow(mem models.Memory) (time.Time, time.Time) {
	text := mem.Summary + " " + mem.RawText

	if m := eventWindowPattern.FindStringSubmatch(text); m != nil {
		hhmm := m[2]
		if hhmm == "" {
			hhmm = defaultStartHHMM
		}
		if len(hhmm) == 4 { // "9:00" -> "09:00"
			hhmm = "0" + hhmm
		}
		if start, err := time.ParseInLocation("2006-01-02 15:04", m[1]+" "+hhmm, time.Local); err == nil {
			return start, start.Add(meetingDuration)
		}
	}

	captured := time.UnixMilli(mem.CreatedAt).In(time.Local)
	next := captured.AddDate(0, 0, 1)
	start := time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, time.Local)
	return start, start.Add(meetingDuration)
}

// escapeICS escapes text per RFC 5545 §3.3.11.
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func icsTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// buildICS renders a single-event VCALENDAR for a meeting memory.
func buildICS(mem models.Memory, start, end time.Time) string {
	summary := mem.Summary
	if summary == "" {
		summary = "Meeting"
	}
	uid := uuid.NewString() + "@" + icsUIDDomain

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + icsProdID + "\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + uid + "\r\n")
	b.WriteString("DTSTAMP:" + icsTimestamp(time.Now()) + "\r\n")
	b.WriteString("DTSTART:" + icsTimestamp(start) + "\r\n")
	b.WriteString("DTEND:" + icsTimestamp(end) + "\r\n")
	b.WriteString("SUMMARY:" + escapeICS(summary) + "\r\n")
	if mem.RawText != "" {
		b.WriteString("DESCRIPTION:" + escapeICS(mem.RawText) + "\r\n")
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// safeFilename builds the invite filename from a uniquifying prefix (the
// memory id) and the sanitized summary. Without the prefix two meetings with
// the same summary would overwrite each other's invites.
func safeFilename(prefix, summary string) string {
	name := unsafeFilenameChars.ReplaceAllString(summary, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "meeting"
	}
	if len(name) > 60 {
		name = name[:60]
	}
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name + ".ics"
}

// writeInvite writes the .ics file for a meeting and returns its path.
func writeInvite(dir string, mem models.Memory, start, end time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create invites dir: %w", err)
	}
	path := filepath.Join(dir, safeFilename(mem.ID.Hex(), mem.Summary))
	if err := os.WriteFile(path, []byte(buildICS(mem, start, end)), 0o644); err != nil {
		return "", fmt.Errorf("write invite: %w", err)
	}
	return path, nil
}

// googleCalendarURL builds a prefilled Google Calendar event link as a
// convenience alongside the .ics file.
func googleCalendarURL(summary string, start, end time.Time) string {
	if summary == "" {
		summary = "Meeting"
	}
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", summary)
	q.Set("dates", icsTimestamp(start)+"/"+icsTimestamp(end))
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}
