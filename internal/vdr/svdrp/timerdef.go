package svdrp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/permashift/internal/vdr"
)

// VDR timer status bits.
const (
	timerFlagActive    = 1
	timerFlagInstant   = 2
	timerFlagRecording = 8
)

// timer definition field positions
const (
	fieldStatus = iota
	fieldChannel
	fieldDay
	fieldStart
	fieldStop
	fieldPriority
	fieldLifetime
	fieldFile
	fieldAux
	timerFieldCount
)

// parseTimerLine parses one LSTT response line: "<id> <definition>", with
// the definition being the colon-separated timer string VDR uses in
// timers.conf (status:channel:day:start:stop:priority:lifetime:file:aux).
func parseTimerLine(line string) (*vdr.Timer, error) {
	id, def, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, fmt.Errorf("malformed timer line %q", line)
	}
	timerID, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("timer id in %q: %w", line, err)
	}

	fields := strings.SplitN(def, ":", timerFieldCount)
	if len(fields) < fieldFile {
		return nil, fmt.Errorf("timer definition %q has %d fields", def, len(fields))
	}

	status, err := strconv.Atoi(fields[fieldStatus])
	if err != nil {
		return nil, fmt.Errorf("timer status in %q: %w", line, err)
	}
	start, err := parsePacked(fields[fieldStart])
	if err != nil {
		return nil, fmt.Errorf("timer start in %q: %w", line, err)
	}
	stop, err := parsePacked(fields[fieldStop])
	if err != nil {
		return nil, fmt.Errorf("timer stop in %q: %w", line, err)
	}
	priority, err := strconv.Atoi(fields[fieldPriority])
	if err != nil {
		return nil, fmt.Errorf("timer priority in %q: %w", line, err)
	}
	lifetime, err := strconv.Atoi(fields[fieldLifetime])
	if err != nil {
		return nil, fmt.Errorf("timer lifetime in %q: %w", line, err)
	}

	day, single := parseDay(fields[fieldDay])

	return &vdr.Timer{
		ID:          vdr.TimerID(timerID),
		ChannelID:   fields[fieldChannel],
		Day:         day,
		Start:       start,
		Stop:        stop,
		Priority:    priority,
		Lifetime:    lifetime,
		SingleEvent: single,
		Recording:   status&timerFlagRecording != 0,
	}, nil
}

func parsePacked(s string) (vdr.PackedTime, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	p := vdr.PackedTime(n)
	if !p.Valid() {
		return 0, fmt.Errorf("packed time %d out of range", n)
	}
	return p, nil
}

// parseDay interprets the timer day field. A plain date is a one-shot
// timer; a weekday pattern ("MTWTF--", optionally "@date") repeats.
func parseDay(s string) (time.Time, bool) {
	if day, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return day, true
	}
	if _, after, ok := strings.Cut(s, "@"); ok {
		if day, err := time.ParseInLocation("2006-01-02", after, time.Local); err == nil {
			return day, false
		}
	}
	return time.Time{}, false
}

// packedField renders a packed time the way timers.conf stores it.
func packedField(p vdr.PackedTime) string {
	return fmt.Sprintf("%02d%02d", p.Hour(), p.Minute())
}
