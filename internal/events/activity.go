package events

import (
	"sync"
	"time"

	"github.com/goodtune/permashift/internal/timeshift"
)

// Sensor tracks the viewer's last remote control activity. Touch is called
// from connection readers, IsUserInactive from the dispatch goroutine.
type Sensor struct {
	clock     timeshift.Clock
	threshold time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewSensor creates a sensor. The daemon start counts as activity so a
// fresh process does not immediately consider the viewer idle.
func NewSensor(clock timeshift.Clock, threshold time.Duration) *Sensor {
	return &Sensor{
		clock:     clock,
		threshold: threshold,
		last:      clock.Now(),
	}
}

// Touch records viewer activity.
func (s *Sensor) Touch() {
	s.mu.Lock()
	s.last = s.clock.Now()
	s.mu.Unlock()
}

// IsUserInactive reports whether the viewer has been idle past the
// threshold.
func (s *Sensor) IsUserInactive() bool {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	return s.clock.Now().Sub(last) >= s.threshold
}
