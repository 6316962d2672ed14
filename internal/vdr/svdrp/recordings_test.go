package svdrp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/vdr"
)

func TestParseRecordingLine(t *testing.T) {
	rec, err := parseRecordingLine("7 14.03.26 23:35* 0:58 Pause")
	if err != nil {
		t.Fatalf("parseRecordingLine: %v", err)
	}
	if rec.Number != 7 {
		t.Errorf("Number = %d, want 7", rec.Number)
	}
	if rec.Name != "Pause" {
		t.Errorf("Name = %q, want Pause", rec.Name)
	}
	if want := time.Date(2026, 3, 14, 23, 35, 0, 0, time.Local); !rec.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", rec.Date, want)
	}
}

func TestParseRecordingLineWithoutDuration(t *testing.T) {
	rec, err := parseRecordingLine("2 01.01.26 20:15 Some Film Title")
	if err != nil {
		t.Fatalf("parseRecordingLine: %v", err)
	}
	if rec.Name != "Some Film Title" {
		t.Errorf("Name = %q", rec.Name)
	}
}

func TestRecordingTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/video/Pause/2026-03-14.23.35.50.99.rec", "Pause"},
		{"/video/News#3A Late/2026-03-14.23.35.50.99.rec", "News: Late"},
	}
	for _, tt := range tests {
		if got := recordingTitle(tt.path); got != tt.want {
			t.Errorf("recordingTitle(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func testIndex(t *testing.T, stub *stubVDR) *Index {
	t.Helper()
	c := testClient(t, stub)
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewIndex(c, logger)
}

func TestFindByNameUniqueTitle(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{
			"250-1 01.01.26 20:15 1:30 Some Film",
			"250 2 14.03.26 23:35* 0:12 Pause",
		}
	})
	x := testIndex(t, stub)

	rec, err := x.FindByName("/video/Pause/2026-03-14.23.35.50.99.rec")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if rec.Number != 2 {
		t.Errorf("Number = %d, want 2", rec.Number)
	}
}

func TestFindByNameDisambiguatesByPath(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		switch {
		case cmd == "LSTR":
			return []string{
				"250-1 13.03.26 23:10 2:00 Pause",
				"250 2 14.03.26 23:35* 0:12 Pause",
			}
		case strings.HasPrefix(cmd, "LSTR 1 path"):
			return []string{"250 /video/Pause/2026-03-13.23.10.50.99.rec"}
		case strings.HasPrefix(cmd, "LSTR 2 path"):
			return []string{"250 /video/Pause/2026-03-14.23.35.50.99.rec"}
		default:
			return []string{"501 unexpected"}
		}
	})
	x := testIndex(t, stub)

	rec, err := x.FindByName("/video/Pause/2026-03-14.23.35.50.99.rec")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if rec.Number != 2 {
		t.Errorf("Number = %d, want 2", rec.Number)
	}
}

func TestFindByNameNoRecordings(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{"550 No recordings available"}
	})
	x := testIndex(t, stub)

	if _, err := x.FindByName("/video/Pause/x.rec"); !errors.Is(err, vdr.ErrNotFound) {
		t.Errorf("err = %v, want %v", err, vdr.ErrNotFound)
	}
}

func TestNewestRecordingPath(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		switch {
		case cmd == "LSTR":
			return []string{
				"250-1 13.03.26 23:10 2:00 Pause",
				"250-2 14.03.26 23:35* 0:12 Pause",
				"250 3 14.03.26 20:15 1:30 Some Film",
			}
		case strings.HasPrefix(cmd, "LSTR 2 path"):
			return []string{"250 /video/Pause/2026-03-14.23.35.50.99.rec"}
		default:
			return []string{"501 unexpected"}
		}
	})
	c := testClient(t, stub)

	path, err := newestRecordingPath(c, "Pause")
	if err != nil {
		t.Fatalf("newestRecordingPath: %v", err)
	}
	if want := "/video/Pause/2026-03-14.23.35.50.99.rec"; path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}
