package timeshift

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/metrics"
	"github.com/goodtune/permashift/internal/storage"
	"github.com/goodtune/permashift/internal/vdr"
)

// Phase is the controller's lifecycle phase, derived from the session state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseActive
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseStopping:
		return "stopping"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// StopReason labels why a session is being torn down.
type StopReason string

const (
	StopViewer      StopReason = "viewer"
	StopInactivity  StopReason = "inactivity"
	StopShutdown    StopReason = "shutdown"
	StopChannelGone StopReason = "channel-gone"
	StopReplaced    StopReason = "replaced"
)

// Controller runs the single background timeshift session. It reacts to
// channel switches by converting live viewing into an instant recording,
// adopts the timer the scheduler creates for it, and deletes both timer and
// recording when the session ends.
//
// All methods must be called from one goroutine. The scheduler delivers
// notifications synchronously from inside calls the controller itself makes;
// the starting/stopping flags distinguish those self-inflicted notifications
// from external ones, the way a re-entrant callback API requires.
type Controller struct {
	sched      Scheduler
	recorder   Recorder
	recordings RecordingIndex
	channels   ChannelDirectory
	journal    Journal
	clock      Clock
	logger     zerolog.Logger

	settings Settings

	// session state
	timerID       vdr.TimerID
	fileName      string
	channelNumber int

	// re-entrancy discriminators
	starting bool // inside StartInstantRecording
	stopping bool // inside teardown
}

// NewController wires a controller. journal may be NopJournal.
func NewController(sched Scheduler, recorder Recorder, recordings RecordingIndex,
	channels ChannelDirectory, journal Journal, clock Clock,
	settings Settings, logger zerolog.Logger) *Controller {
	return &Controller{
		sched:      sched,
		recorder:   recorder,
		recordings: recordings,
		channels:   channels,
		journal:    journal,
		clock:      clock,
		settings:   settings,
		logger:     logger.With().Str("component", "timeshift").Logger(),
	}
}

// Phase returns the controller's current lifecycle phase.
func (c *Controller) Phase() Phase {
	switch {
	case c.stopping:
		return PhaseStopping
	case c.timerID != vdr.NoTimer:
		return PhaseActive
	case c.starting:
		return PhaseStarting
	default:
		return PhaseIdle
	}
}

// TimerID returns the adopted timer's ID, or vdr.NoTimer.
func (c *Controller) TimerID() vdr.TimerID { return c.timerID }

// Settings returns the current settings.
func (c *Controller) Settings() Settings { return c.settings }

// SetEnabled toggles the feature at runtime. Disabling does not stop a
// session that is already running.
func (c *Controller) SetEnabled(enabled bool) {
	c.settings.Enabled = enabled
	c.logger.Info().Bool("enabled", enabled).Msg("Timeshift toggled")
}

// SetMaxLengthHours updates the session length cap. Values outside [1, 23]
// are ignored. Applies to the next session; the running one keeps its timer.
func (c *Controller) SetMaxLengthHours(hours int) {
	if hours < 1 || hours > 23 {
		c.logger.Warn().Int("hours", hours).Msg("Rejecting out-of-range max length")
		return
	}
	c.settings.MaxLengthHours = hours
}

// Start begins a background session for the channel. If a session is
// already running it is stopped first, so a rapid channel change replaces
// the old buffer instead of leaking it.
func (c *Controller) Start(channelNumber int) error {
	if !c.settings.Enabled {
		return nil
	}
	if c.timerID != vdr.NoTimer {
		if err := c.Stop(StopReplaced); err != nil {
			c.logger.Warn().Err(err).Msg("Stopping previous session before restart failed")
		}
	}

	ch, err := c.channels.ChannelByNumber(channelNumber)
	if err != nil {
		if errors.Is(err, vdr.ErrNotFound) {
			c.logger.Error().Int("channel", channelNumber).Msg("Channel not found, not starting timeshift")
			return fmt.Errorf("channel %d: %w", channelNumber, ErrChannelNotFound)
		}
		return fmt.Errorf("resolving channel %d: %w", channelNumber, err)
	}

	c.logger.Debug().Int("channel", channelNumber).Str("name", ch.Name).Msg("Starting background recording")

	c.starting = true
	c.channelNumber = channelNumber
	err = c.sched.StartInstantRecording(ch)
	c.starting = false

	if err != nil {
		c.channelNumber = 0
		c.fileName = ""
		return fmt.Errorf("starting instant recording on channel %d: %w", channelNumber, err)
	}
	if c.timerID == vdr.NoTimer {
		// The scheduler reported success but never announced a timer.
		c.logger.Error().Int("channel", channelNumber).Msg("Recording started but no timer was announced")
		c.channelNumber = 0
		c.fileName = ""
		return ErrNoTimerAdopted
	}

	metrics.SessionsStarted.Inc()
	metrics.SessionActive.Set(1)
	c.record(storage.SessionEvent{Kind: storage.EventStarted})
	c.journal.SaveActive(storage.ActiveSession{
		TimerID:       int(c.timerID),
		ChannelNumber: c.channelNumber,
		FileName:      c.fileName,
		StartedAt:     c.clock.Now(),
	})
	c.logger.Info().
		Int("channel", channelNumber).
		Int("timer", int(c.timerID)).
		Msg("Background timeshift session started")
	return nil
}

// Stop tears the session down: the timer is wound down and deleted, and the
// buffer recording is removed from disk. A promoted timer is relinquished
// untouched. Stop without a session is a successful no-op.
func (c *Controller) Stop(reason StopReason) error {
	if !c.settings.Enabled {
		return nil
	}
	if c.stopping || c.timerID == vdr.NoTimer {
		return nil
	}

	live, err := c.sched.ListTimers()
	if err != nil {
		return fmt.Errorf("listing timers: %w", err)
	}
	t, terr := c.sched.Timer(c.timerID)
	if terr != nil && !errors.Is(terr, vdr.ErrNotFound) {
		return fmt.Errorf("fetching timer %d: %w", c.timerID, terr)
	}

	threshold := PauseThreshold{Priority: c.settings.PausePriority, Lifetime: c.settings.PauseLifetime}
	switch CheckOwnership(c.timerID, t, live, threshold) {
	case Gone:
		c.logger.Error().Int("timer", int(c.timerID)).Msg("Session timer vanished before teardown")
		metrics.StaleTimerAnomalies.Inc()
		c.record(storage.SessionEvent{Kind: storage.EventVanished, Reason: string(reason)})
		c.clearSession()
		return ErrStaleTimer
	case Promoted:
		c.logger.Info().
			Int("timer", int(c.timerID)).
			Int("priority", t.Priority).
			Int("lifetime", t.Lifetime).
			Msg("Timer was promoted to a kept recording, leaving it alone")
		metrics.SessionsPromoted.Inc()
		c.record(storage.SessionEvent{Kind: storage.EventPromoted, Reason: string(reason)})
		c.clearSession()
		return nil
	}

	fileName, ok := c.recorder.ActiveFileName(c.timerID)
	if !ok || fileName == "" {
		fileName = c.fileName
	}
	if fileName == "" {
		c.logger.Error().Int("timer", int(c.timerID)).Msg("No file name known for session recording")
		metrics.TeardownAnomalies.WithLabelValues("missing_file_name").Inc()
	}

	id := c.timerID
	c.stopping = true
	defer func() { c.stopping = false }()

	// Wind the recording down before deleting the timer so the scheduler
	// releases the record control cleanly.
	if err := c.sched.SkipTimer(id); err != nil {
		c.logger.Error().Err(err).Int("timer", int(id)).Msg("Skipping timer event failed")
	}
	if err := c.sched.ProcessPending(c.clock.Now()); err != nil {
		c.logger.Error().Err(err).Msg("Scheduler pass failed")
	}
	if err := c.sched.DeleteTimer(id); err != nil {
		c.logger.Error().Err(err).Int("timer", int(id)).Msg("Deleting session timer failed")
	}
	c.sched.MarkTimersDirty()

	metrics.SessionsStopped.WithLabelValues(string(reason)).Inc()
	c.record(storage.SessionEvent{Kind: storage.EventStopped, Reason: string(reason), FileName: fileName})
	c.clearSession()

	if fileName != "" {
		c.deleteRecording(fileName)
	}

	c.logger.Info().Str("reason", string(reason)).Int("timer", int(id)).Msg("Background timeshift session stopped")
	return nil
}

// Shutdown ends any running session and asks the scheduler to persist its
// timer list. Called once when the daemon goes down.
func (c *Controller) Shutdown() {
	if err := c.Stop(StopShutdown); err != nil {
		c.logger.Warn().Err(err).Msg("Stopping session at shutdown failed")
	}
	c.sched.MarkTimersDirty()
}

// OnChannelSwitch handles a live-view channel change. A positive channel
// number starts a session there; zero means the live channel went away and
// the session ends with it. Non-live switches are ignored.
func (c *Controller) OnChannelSwitch(number int, liveView bool) {
	if !liveView {
		return
	}
	if number > 0 {
		if err := c.Start(number); err != nil {
			c.logger.Error().Err(err).Int("channel", number).Msg("Channel switch did not start a session")
		}
		return
	}
	if err := c.Stop(StopChannelGone); err != nil {
		c.logger.Error().Err(err).Msg("Stopping session after live channel went away failed")
	}
}

// OnTimerChange handles a timer set mutation announced by the scheduler.
// t is a snapshot; for deletions it describes the timer's final state.
func (c *Controller) OnTimerChange(t *vdr.Timer, change vdr.TimerChange) {
	if t == nil {
		return
	}
	switch change {
	case vdr.TimerAdded:
		if !c.starting || c.timerID != vdr.NoTimer {
			// Not ours. Timers come and go all the time.
			return
		}
		c.adoptTimer(t)
	case vdr.TimerDeleted:
		if c.stopping || c.timerID == vdr.NoTimer || t.ID != c.timerID {
			return
		}
		c.externallyDeleted(t)
	}
}

// adoptTimer claims the timer the scheduler created for our instant
// recording: demote it below the tuner hand-off priority and stretch its
// stop time to the configured session length.
func (c *Controller) adoptTimer(t *vdr.Timer) {
	c.timerID = t.ID
	if err := c.sched.SetTimerPriority(t.ID, SessionPriority); err != nil {
		c.logger.Error().Err(err).Int("timer", int(t.ID)).Msg("Demoting adopted timer failed")
	}
	stop := ComputeStopTime(t.Start, c.settings.MaxLengthHours)
	if err := c.sched.SetTimerStop(t.ID, stop); err != nil {
		c.logger.Error().Err(err).Int("timer", int(t.ID)).Msg("Extending adopted timer failed")
	}
	metrics.TimersAdopted.Inc()
	c.logger.Debug().
		Int("timer", int(t.ID)).
		Stringer("start", t.Start).
		Stringer("stop", stop).
		Msg("Adopted instant recording timer")
}

// externallyDeleted handles someone else deleting our timer. If its event
// already ran out, the leftover buffer is removed; either way the session
// reference is dropped.
func (c *Controller) externallyDeleted(t *vdr.Timer) {
	expired := t.SingleEvent && !t.Recording && !t.StopAt().After(c.clock.Now())
	if expired {
		c.logger.Info().Int("timer", int(t.ID)).Msg("Session timer expired and was removed, cleaning up buffer")
		c.record(storage.SessionEvent{Kind: storage.EventExpired, FileName: c.fileName})
		fileName := c.fileName
		c.clearSession()
		if fileName != "" {
			c.deleteRecording(fileName)
		}
		return
	}
	c.logger.Warn().
		Int("timer", int(t.ID)).
		Bool("recording", t.Recording).
		Msg("Session timer was deleted externally, dropping reference")
	c.record(storage.SessionEvent{Kind: storage.EventVanished, Reason: "external-delete"})
	c.clearSession()
}

// OnRecordingStateChange captures the file name of the recording created
// during session start. Recording events outside the start window belong to
// other recordings and are ignored.
func (c *Controller) OnRecordingStateChange(name, fileName string, on bool) {
	if !on || !c.starting {
		return
	}
	c.fileName = fileName
	c.logger.Debug().Str("name", name).Str("file", fileName).Msg("Captured session recording file name")
}

// Recover re-attaches to a session persisted by an earlier daemon life. A
// session whose timer is gone is cleared without touching any recording.
func (c *Controller) Recover(active storage.ActiveSession) {
	if !c.settings.Enabled || c.timerID != vdr.NoTimer {
		return
	}
	id := vdr.TimerID(active.TimerID)
	live, err := c.sched.ListTimers()
	if err != nil {
		c.logger.Error().Err(err).Msg("Cannot list timers for session recovery")
		return
	}
	alive := false
	for _, l := range live {
		if l == id {
			alive = true
			break
		}
	}
	if !alive {
		c.logger.Warn().Int("timer", active.TimerID).Msg("Persisted session timer no longer exists, discarding")
		metrics.StaleTimerAnomalies.Inc()
		c.record(storage.SessionEvent{Kind: storage.EventVanished, Reason: "recovery",
			TimerID: active.TimerID, ChannelNumber: active.ChannelNumber})
		c.journal.ClearActive()
		return
	}
	c.timerID = id
	c.fileName = active.FileName
	c.channelNumber = active.ChannelNumber
	metrics.SessionActive.Set(1)
	c.logger.Info().
		Int("timer", active.TimerID).
		Int("channel", active.ChannelNumber).
		Msg("Resumed background session from a previous run")
}

// deleteRecording removes the session's buffer recording from disk and from
// the index. Failures are logged; the timer is already gone at this point.
func (c *Controller) deleteRecording(fileName string) {
	rec, err := c.recordings.FindByName(fileName)
	if err != nil {
		if errors.Is(err, vdr.ErrNotFound) {
			c.logger.Warn().Str("file", fileName).Msg("Session recording not found in index")
			metrics.TeardownAnomalies.WithLabelValues("recording_not_found").Inc()
			return
		}
		c.logger.Error().Err(err).Str("file", fileName).Msg("Looking up session recording failed")
		metrics.TeardownAnomalies.WithLabelValues("recording_lookup").Inc()
		return
	}
	if err := c.recordings.DeleteStorage(rec); err != nil {
		c.logger.Error().Err(err).Str("file", fileName).Msg("Deleting session recording failed")
		metrics.TeardownAnomalies.WithLabelValues("recording_delete").Inc()
		return
	}
	c.recordings.Forget(fileName)
	c.logger.Debug().Str("file", fileName).Msg("Session recording removed")
}

// record fills in the session context and hands the event to the journal.
func (c *Controller) record(ev storage.SessionEvent) {
	if ev.TimerID == 0 {
		ev.TimerID = int(c.timerID)
	}
	if ev.ChannelNumber == 0 {
		ev.ChannelNumber = c.channelNumber
	}
	if ev.FileName == "" {
		ev.FileName = c.fileName
	}
	c.journal.Record(ev)
}

func (c *Controller) clearSession() {
	c.timerID = vdr.NoTimer
	c.fileName = ""
	c.channelNumber = 0
	metrics.SessionActive.Set(0)
	c.journal.ClearActive()
}
