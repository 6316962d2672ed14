package timeshift

import (
	"time"

	"github.com/goodtune/permashift/internal/storage"
	"github.com/goodtune/permashift/internal/vdr"
)

// Scheduler is the timer side of the recorder the controller drives. The
// production implementation talks SVDRP to a running VDR; tests use fakes
// that reproduce VDR's synchronous notification behavior.
type Scheduler interface {
	// StartInstantRecording starts an instant recording on the channel.
	// Implementations announce the resulting timer through the controller's
	// OnTimerChange before returning, mirroring how VDR notifies plugins
	// from inside the start call.
	StartInstantRecording(ch *vdr.Channel) error

	// Timer returns a snapshot of the timer, or vdr.ErrNotFound.
	Timer(id vdr.TimerID) (*vdr.Timer, error)

	// ListTimers returns the IDs of all live timers.
	ListTimers() ([]vdr.TimerID, error)

	SetTimerPriority(id vdr.TimerID, priority int) error
	SetTimerStop(id vdr.TimerID, stop vdr.PackedTime) error

	// SkipTimer marks the timer's current event as skipped so the
	// scheduler winds the recording down on its next pass.
	SkipTimer(id vdr.TimerID) error

	// ProcessPending forces a scheduler pass so a skipped timer releases
	// its recording before the timer is deleted.
	ProcessPending(now time.Time) error

	DeleteTimer(id vdr.TimerID) error

	// MarkTimersDirty asks the scheduler to persist its timer list.
	MarkTimersDirty()
}

// Recorder resolves the on-disk file name of an active recording.
type Recorder interface {
	// ActiveFileName returns the recording file name for the timer, or
	// false if no record control is attached to it.
	ActiveFileName(id vdr.TimerID) (string, bool)
}

// RecordingIndex is the recording catalogue used to clean up finished
// timeshift buffers.
type RecordingIndex interface {
	// FindByName returns the recording, or vdr.ErrNotFound.
	FindByName(name string) (*vdr.Recording, error)

	// DeleteStorage removes the recording's data from disk.
	DeleteStorage(rec *vdr.Recording) error

	// Forget drops the entry from the index after its storage is gone.
	Forget(name string)
}

// ChannelDirectory resolves channel numbers to channels.
type ChannelDirectory interface {
	// ChannelByNumber returns the channel, or vdr.ErrNotFound.
	ChannelByNumber(number int) (*vdr.Channel, error)
}

// Prompter asks the viewer a yes/no question on screen. Confirm blocks up
// to timeout; when the viewer does not answer, it returns defaultAnswer.
type Prompter interface {
	Confirm(message string, timeout time.Duration, defaultAnswer bool) bool
}

// ActivitySensor reports whether the viewer has been idle long enough that
// an unattended session should be questioned.
type ActivitySensor interface {
	IsUserInactive() bool
}

// Journal receives session lifecycle events and keeps the persisted active
// session current. Implementations must swallow storage failures; the
// controller treats journaling as fire-and-forget.
type Journal interface {
	Record(ev storage.SessionEvent)
	SaveActive(s storage.ActiveSession)
	ClearActive()
}

// NopJournal is a Journal that discards everything.
type NopJournal struct{}

func (NopJournal) Record(storage.SessionEvent)      {}
func (NopJournal) SaveActive(storage.ActiveSession) {}
func (NopJournal) ClearActive()                     {}

// Settings are the runtime-adjustable knobs of the controller.
type Settings struct {
	// Enabled gates the whole feature. When false, Start and Stop are
	// successful no-ops.
	Enabled bool

	// MaxLengthHours caps a session recording's length, 1 to 23.
	MaxLengthHours int

	// Pause thresholds separating disposable session timers from
	// recordings the viewer promoted to keep.
	PausePriority int
	PauseLifetime int
}

// DefaultSettings returns the settings VDR ships with for paused live video.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        true,
		MaxLengthHours: 3,
		PausePriority:  DefaultPausePriority,
		PauseLifetime:  DefaultPauseLifetime,
	}
}
