package storage

import "time"

// EventKind classifies a session journal entry.
type EventKind string

const (
	// EventStarted records a new background session with an adopted timer.
	EventStarted EventKind = "started"
	// EventPromoted records a session released because its timer was raised
	// above the pause threshold.
	EventPromoted EventKind = "promoted"
	// EventStopped records a deliberate teardown.
	EventStopped EventKind = "stopped"
	// EventExpired records an externally deleted timer whose recording was
	// cleaned up because its stop time had passed.
	EventExpired EventKind = "expired"
	// EventVanished records a timer reference found stale during teardown
	// or startup recovery.
	EventVanished EventKind = "vanished"
)

// SessionEvent is one entry of the session journal.
type SessionEvent struct {
	ID            string    `json:"id"`
	At            time.Time `json:"at"`
	Kind          EventKind `json:"kind"`
	Reason        string    `json:"reason,omitempty"`
	ChannelNumber int       `json:"channel_number,omitempty"`
	TimerID       int       `json:"timer_id,omitempty"`
	FileName      string    `json:"file_name,omitempty"`
}

// ActiveSession is the persisted state of the one live background session,
// kept so a restarted daemon can re-attach to (or clean up after) a timer
// it created in an earlier life.
type ActiveSession struct {
	TimerID       int       `json:"timer_id"`
	ChannelNumber int       `json:"channel_number"`
	FileName      string    `json:"file_name,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}
