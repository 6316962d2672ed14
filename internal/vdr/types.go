package vdr

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a timer, channel or recording does not exist
// in VDR's live collections.
var ErrNotFound = errors.New("vdr: not found")

// PackedTime is VDR's time-of-day encoding: hours*100 + minutes.
// A valid value lies in [0, 2400) with a minute part below 60.
type PackedTime int

// Hour returns the hour component.
func (p PackedTime) Hour() int { return int(p) / 100 }

// Minute returns the minute component.
func (p PackedTime) Minute() int { return int(p) % 100 }

// Valid reports whether p encodes a real time of day.
func (p PackedTime) Valid() bool {
	return p >= 0 && p < 2400 && p.Minute() < 60
}

func (p PackedTime) String() string {
	return fmt.Sprintf("%02d:%02d", p.Hour(), p.Minute())
}

// TimerID identifies a timer in the scheduler's live timer set.
// IDs are assigned by VDR and may be reused after deletion, which is why
// holders must re-check liveness before every use.
type TimerID int

// NoTimer is the zero TimerID; VDR numbers timers from 1.
const NoTimer TimerID = 0

// TimerChange describes a timer set mutation reported by VDR.
type TimerChange int

const (
	TimerAdded TimerChange = iota
	TimerDeleted
	TimerModified
)

func (c TimerChange) String() string {
	switch c {
	case TimerAdded:
		return "added"
	case TimerDeleted:
		return "deleted"
	case TimerModified:
		return "modified"
	default:
		return fmt.Sprintf("TimerChange(%d)", int(c))
	}
}

// Timer is a point-in-time snapshot of a scheduler timer entry. The entry
// itself is owned by VDR; a snapshot does not pin it.
type Timer struct {
	ID          TimerID
	ChannelID   string
	Day         time.Time // date of the (first) event, midnight local time
	Start       PackedTime
	Stop        PackedTime
	Priority    int
	Lifetime    int
	SingleEvent bool // one-shot entry, not a repeating pattern
	Recording   bool // currently recording
}

// StopAt returns the absolute stop time of the timer's current event.
// A stop before the start rolls over past midnight into the next day.
func (t *Timer) StopAt() time.Time {
	stop := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(),
		t.Stop.Hour(), t.Stop.Minute(), 0, 0, t.Day.Location())
	if t.Stop < t.Start {
		stop = stop.AddDate(0, 0, 1)
	}
	return stop
}

// Channel is a tunable broadcast channel from VDR's channel list.
type Channel struct {
	Number   int
	ID       string
	Name     string
	Provider string
}

// Recording is an entry of VDR's recording index.
type Recording struct {
	Number int // index position used by DELR
	Name   string
	Date   time.Time
}
