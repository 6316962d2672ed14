package timeshift

import (
	"time"

	"github.com/goodtune/permashift/internal/vdr"
)

const minutesPerDay = 24 * 60

// ToMinutes converts a packed HHMM time to minutes since midnight.
func ToMinutes(p vdr.PackedTime) int {
	return p.Hour()*60 + p.Minute()
}

// FromMinutes converts minutes since midnight back to packed HHMM,
// normalizing values outside [0, 1440) onto the 24h clock.
func FromMinutes(m int) vdr.PackedTime {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return vdr.PackedTime(m/60*100 + m%60)
}

// ComputeStopTime returns the packed stop time for a recording that starts
// at start and runs for hours hours, wrapping past midnight.
func ComputeStopTime(start vdr.PackedTime, hours int) vdr.PackedTime {
	return FromMinutes(ToMinutes(start) + hours*60)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TestClock implements Clock with a controllable time for tests.
type TestClock struct {
	Current time.Time
}

func (c *TestClock) Now() time.Time { return c.Current }

// Advance moves the test clock forward.
func (c *TestClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
