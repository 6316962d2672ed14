package svdrp

import (
	"errors"
	"fmt"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/vdr"
)

// Index is the recording catalogue over SVDRP (LSTR/DELR).
type Index struct {
	client *Client
	logger zerolog.Logger
}

// NewIndex creates a recording index.
func NewIndex(client *Client, logger zerolog.Logger) *Index {
	return &Index{
		client: client,
		logger: logger.With().Str("component", "recordings").Logger(),
	}
}

// FindByName resolves a recording by its on-disk file name. VDR lists
// recordings by title, so candidates with the title from the path are
// narrowed down by asking for each one's path.
func (x *Index) FindByName(fileName string) (*vdr.Recording, error) {
	title := recordingTitle(fileName)

	lines, err := x.client.Exec("LSTR")
	if err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code == 550 {
			return nil, vdr.ErrNotFound
		}
		return nil, err
	}

	var candidates []*vdr.Recording
	for _, line := range lines {
		rec, perr := parseRecordingLine(line)
		if perr != nil {
			continue
		}
		if rec.Name == title {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil, vdr.ErrNotFound
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	// Several recordings share the title; match on the exact path.
	for _, rec := range candidates {
		pathLines, perr := x.client.Exec("LSTR %d path", rec.Number)
		if perr != nil || len(pathLines) == 0 {
			continue
		}
		if strings.TrimSpace(pathLines[0]) == fileName {
			return rec, nil
		}
	}
	return nil, vdr.ErrNotFound
}

// DeleteStorage removes the recording's data via DELR.
func (x *Index) DeleteStorage(rec *vdr.Recording) error {
	if rec == nil {
		return vdr.ErrNotFound
	}
	if _, err := x.client.Exec("DELR %d", rec.Number); err != nil {
		return fmt.Errorf("deleting recording %d: %w", rec.Number, err)
	}
	return nil
}

// Forget is a no-op over SVDRP: DELR drops the index entry too.
func (x *Index) Forget(string) {}

// newestRecordingPath resolves the on-disk path of the most recent
// recording with the given title. An instant recording shows up in LSTR
// moments after the timer starts, newest of its title.
func newestRecordingPath(client *Client, name string) (string, error) {
	lines, err := client.Exec("LSTR")
	if err != nil {
		return "", err
	}

	var newest *vdr.Recording
	for _, line := range lines {
		rec, perr := parseRecordingLine(line)
		if perr != nil || rec.Name != name {
			continue
		}
		if newest == nil || rec.Date.After(newest.Date) {
			newest = rec
		}
	}
	if newest == nil {
		return "", vdr.ErrNotFound
	}

	pathLines, err := client.Exec("LSTR %d path", newest.Number)
	if err != nil {
		return "", err
	}
	if len(pathLines) == 0 {
		return "", fmt.Errorf("no path for recording %d", newest.Number)
	}
	return strings.TrimSpace(pathLines[0]), nil
}

// recordingTitle extracts the title from a recording path. VDR lays
// recordings out as <video dir>/<title>/<timestamp>.rec.
func recordingTitle(fileName string) string {
	dir := filepath.Dir(fileName)
	title := filepath.Base(dir)
	// VDR escapes path-hostile characters in directory names
	return strings.ReplaceAll(title, "#3A", ":")
}

// parseRecordingLine parses one LSTR response line:
// "<number> <date> <time>[*] [<duration>] <title>".
func parseRecordingLine(line string) (*vdr.Recording, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed recording line %q", line)
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("recording number in %q: %w", line, err)
	}

	// A trailing * on the time marks an unwatched recording.
	stamp := fields[1] + " " + strings.TrimSuffix(fields[2], "*")
	date, _ := time.ParseInLocation("02.01.06 15:04", stamp, time.Local)

	rest := fields[3:]
	if len(rest) > 1 && looksLikeDuration(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("recording line %q has no title", line)
	}

	return &vdr.Recording{
		Number: number,
		Name:   strings.Join(rest, " "),
		Date:   date,
	}, nil
}

func looksLikeDuration(s string) bool {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return false
	}
	if _, err := strconv.Atoi(h); err != nil {
		return false
	}
	if _, err := strconv.Atoi(strings.TrimSuffix(m, "*")); err != nil {
		return false
	}
	return true
}
