package timeshift

import "github.com/goodtune/permashift/internal/vdr"

// TransferPriority is the priority VDR uses when handing a device over to
// live viewing. A background timeshift timer must stay below it so it never
// wins a receiver against the viewer.
const TransferPriority = -1

// SessionPriority is the priority assigned to adopted timeshift timers.
const SessionPriority = TransferPriority - 1

// Default pause thresholds, matching VDR's PausePriority and PauseLifetime
// setup values.
const (
	DefaultPausePriority = 10
	DefaultPauseLifetime = 1
)

// Ownership is the interference guard's verdict on a session timer.
type Ownership int

const (
	// Owned means the timer still belongs to the background session and may
	// be torn down together with its recording.
	Owned Ownership = iota
	// Promoted means a user or another component raised the timer's priority
	// or lifetime above the pause threshold. The session must relinquish it
	// and leave the recording alone.
	Promoted
	// Gone means the timer no longer exists in the scheduler's live set.
	Gone
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Promoted:
		return "promoted"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}

// PauseThreshold separates disposable timeshift timers from recordings the
// user wants to keep.
type PauseThreshold struct {
	Priority int
	Lifetime int
}

// CheckOwnership decides whether the timer identified by id is still a
// disposable session timer. live is the scheduler's current timer set and t
// the timer's snapshot (ignored when the id is absent from live).
func CheckOwnership(id vdr.TimerID, t *vdr.Timer, live []vdr.TimerID, th PauseThreshold) Ownership {
	found := false
	for _, l := range live {
		if l == id {
			found = true
			break
		}
	}
	if !found || t == nil {
		return Gone
	}
	if t.Priority > th.Priority || t.Lifetime > th.Lifetime {
		return Promoted
	}
	return Owned
}
