package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"echovault/internal/models"
)

func TestExtractEventWindow(t *testing.T) {
	captured := time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)

	tests := []struct {
		name      string
		text      string
		wantStart time.Time
	}{
		{
			name:      "date and time",
			text:      "sync with priya on 2026-03-12 14:30",
			wantStart: time.Date(2026, 3, 12, 14, 30, 0, 0, time.Local),
		},
		{
			name:      "iso separator",
			text:      "interview 2026-03-12T10:00 in the big room",
			wantStart: time.Date(2026, 3, 12, 10, 0, 0, 0, time.Local),
		},
		{
			name:      "date only defaults to nine",
			text:      "board meeting 2026-04-01",
			wantStart: time.Date(2026, 4, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "single digit hour",
			text:      "call on 2026-03-12 9:15",
			wantStart: time.Date(2026, 3, 12, 9, 15, 0, 0, time.Local),
		},
		{
			name:      "no date defaults to next day",
			text:      "meeting with legal sometime soon",
			wantStart: time.Date(2026, 3, 11, 9, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := models.Memory{RawText: tt.text, CreatedAt: captured.UnixMilli()}
			start, end := extractEventWindow(mem)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if got := end.Sub(start); got != meetingDuration {
				t.Errorf("duration = %v, want %v", got, meetingDuration)
			}
		})
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain text", want: "plain text"},
		{in: "a;b,c", want: `a\;b\,c`},
		{in: "line1\nline2", want: `line1\nline2`},
		{in: "line1\r\nline2", want: `line1\nline2`},
		{in: `back\slash`, want: `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeICS(tt.in); got != tt.want {
			t.Errorf("escapeICS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildICS(t *testing.T) {
	mem := models.Memory{
		Summary: "Sync; with, Priya",
		RawText: "agenda:\nQ3 numbers",
	}
	start := time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)
	ics := buildICS(mem, start, start.Add(meetingDuration))

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"PRODID:" + icsProdID + "\r\n",
		"DTSTART:20260312T143000Z\r\n",
		"DTEND:20260312T150000Z\r\n",
		`SUMMARY:Sync\; with\, Priya` + "\r\n",
		`DESCRIPTION:agenda:\nQ3 numbers` + "\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("ICS missing %q\n%s", want, ics)
		}
	}
	if !strings.Contains(ics, "@"+icsUIDDomain) {
		t.Error("UID missing domain suffix")
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		prefix string
		in     string
		want   string
	}{
		{prefix: "abc123", in: "Team sync Q3", want: "abc123_Team_sync_Q3.ics"},
		{prefix: "abc123", in: "sync; with/priya?", want: "abc123_sync_with_priya.ics"},
		{prefix: "abc123", in: "", want: "abc123_meeting.ics"},
		{prefix: "abc123", in: "???", want: "abc123_meeting.ics"},
		{prefix: "", in: "Team sync", want: "Team_sync.ics"},
	}
	for _, tt := range tests {
		if got := safeFilename(tt.prefix, tt.in); got != tt.want {
			t.Errorf("safeFilename(%q, %q) = %q, want %q", tt.prefix, tt.in, got, tt.want)
		}
	}
}

func TestWriteInvite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invites")
	mem := models.Memory{Summary: "Board meeting", RawText: "meeting 2026-04-01"}
	start, end := extractEventWindow(mem)

	path, err := writeInvite(dir, mem, start, end)
	if err != nil {
		t.Fatalf("writeInvite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read invite: %v", err)
	}
	if !strings.Contains(string(data), "SUMMARY:Board meeting") {
		t.Errorf("invite content missing summary:\n%s", data)
	}
}

func TestWriteInviteSameSummaryDistinctFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invites")

	first := models.Memory{ID: primitive.NewObjectID(), Summary: "Weekly sync", RawText: "weekly sync 2026-03-12 10:00"}
	second := models.Memory{ID: primitive.NewObjectID(), Summary: "Weekly sync", RawText: "weekly sync 2026-03-19 10:00"}

	start1, end1 := extractEventWindow(first)
	path1, err := writeInvite(dir, first, start1, end1)
	if err != nil {
		t.Fatalf("writeInvite first: %v", err)
	}
	start2, end2 := extractEventWindow(second)
	path2, err := writeInvite(dir, second, start2, end2)
	if err != nil {
		t.Fatalf("writeInvite second: %v", err)
	}

	if path1 == path2 {
		t.Fatalf("two meetings with the same summary share one path %s", path1)
	}
	for _, path := range []string{path1, path2} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("invite %s missing: %v", path, err)
		}
	}
}

func TestGoogleCalendarURL(t *testing.T) {
	start := time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)
	url := googleCalendarURL("Team sync", start, start.Add(meetingDuration))
	if !strings.HasPrefix(url, "https://calendar.google.com/calendar/render?") {
		t.Errorf("unexpected prefix: %s", url)
	}
	if !strings.Contains(url, "text=Team+sync") {
		t.Errorf("summary not encoded: %s", url)
	}
	if !strings.Contains(url, "20260312T143000Z%2F20260312T150000Z") {
		t.Errorf("dates not encoded: %s", url)
	}
}
