package svdrp

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/vdr"
)

// Sink receives the notifications VDR would deliver to an in-process
// plugin. StartInstantRecording calls it synchronously, before returning,
// so the caller can adopt the new timer from inside its own start call.
type Sink interface {
	OnTimerChange(t *vdr.Timer, change vdr.TimerChange)
	OnRecordingStateChange(name, fileName string, on bool)
}

// Scheduler drives VDR's timer list over SVDRP. It implements the
// controller's Scheduler and Recorder collaborators.
type Scheduler struct {
	client *Client
	logger zerolog.Logger
	sink   Sink

	// file names of recordings we started, by timer
	files map[vdr.TimerID]string

	// timer most recently wound down by SkipTimer
	lastSkipped vdr.TimerID
}

// NewScheduler creates a scheduler on top of an SVDRP client. The sink is
// wired afterwards because the controller and the scheduler reference each
// other.
func NewScheduler(client *Client, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		client: client,
		logger: logger.With().Str("component", "scheduler").Logger(),
		files:  make(map[vdr.TimerID]string),
	}
}

// SetSink attaches the notification receiver.
func (s *Scheduler) SetSink(sink Sink) { s.sink = sink }

// StartInstantRecording presses the Record key on the channel currently
// being viewed, waits for the timer VDR creates, and announces it through
// the sink before returning.
func (s *Scheduler) StartInstantRecording(ch *vdr.Channel) error {
	before, err := s.ListTimers()
	if err != nil {
		return fmt.Errorf("listing timers before start: %w", err)
	}
	known := make(map[vdr.TimerID]bool, len(before))
	for _, id := range before {
		known[id] = true
	}

	if _, err := s.client.Exec("HITK Record"); err != nil {
		return fmt.Errorf("pressing record: %w", err)
	}

	t, err := s.waitForNewTimer(known)
	if err != nil {
		return err
	}

	if s.sink != nil {
		s.sink.OnTimerChange(t, vdr.TimerAdded)
	}
	s.announceRecording(t)
	return nil
}

// waitForNewTimer polls the timer list until an entry appears that was not
// there before the record keypress.
func (s *Scheduler) waitForNewTimer(known map[vdr.TimerID]bool) (*vdr.Timer, error) {
	deadline := time.Now().Add(3 * time.Second)
	for {
		lines, err := s.client.Exec("LSTT")
		if err == nil {
			for _, line := range lines {
				t, perr := parseTimerLine(line)
				if perr != nil {
					continue
				}
				if !known[t.ID] {
					return t, nil
				}
			}
		}
		if time.Now().After(deadline) {
			return nil, errors.New("svdrp: record keypress produced no timer")
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// announceRecording resolves the file name of the recording the new timer
// produces and reports it through the sink. Best effort: without a file
// name the session still runs, teardown just logs an anomaly.
func (s *Scheduler) announceRecording(t *vdr.Timer) {
	name := timerFileField(t, s.client)
	if name == "" {
		s.logger.Warn().Int("timer", int(t.ID)).Msg("New timer has no recording name")
		return
	}
	path, err := newestRecordingPath(s.client, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("name", name).Msg("Could not resolve recording path")
		return
	}
	s.files[t.ID] = path
	if s.sink != nil {
		s.sink.OnRecordingStateChange(name, path, true)
	}
}

// ActiveFileName implements the Recorder collaborator from the file names
// captured at start.
func (s *Scheduler) ActiveFileName(id vdr.TimerID) (string, bool) {
	path, ok := s.files[id]
	return path, ok
}

// Timer returns a snapshot of one timer.
func (s *Scheduler) Timer(id vdr.TimerID) (*vdr.Timer, error) {
	lines, err := s.client.Exec("LSTT %d", id)
	if err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code == 501 {
			return nil, vdr.ErrNotFound
		}
		return nil, err
	}
	if len(lines) == 0 {
		return nil, vdr.ErrNotFound
	}
	return parseTimerLine(lines[0])
}

// ListTimers returns the IDs of all live timers.
func (s *Scheduler) ListTimers() ([]vdr.TimerID, error) {
	lines, err := s.client.Exec("LSTT")
	if err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code == 550 {
			// No timers defined
			return nil, nil
		}
		return nil, err
	}
	ids := make([]vdr.TimerID, 0, len(lines))
	for _, line := range lines {
		id, _, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		ids = append(ids, vdr.TimerID(n))
	}
	return ids, nil
}

// SetTimerPriority rewrites the timer's priority field via MODT.
func (s *Scheduler) SetTimerPriority(id vdr.TimerID, priority int) error {
	return s.modifyTimerField(id, fieldPriority, strconv.Itoa(priority))
}

// SetTimerStop rewrites the timer's stop field via MODT.
func (s *Scheduler) SetTimerStop(id vdr.TimerID, stop vdr.PackedTime) error {
	return s.modifyTimerField(id, fieldStop, packedField(stop))
}

// SkipTimer deactivates the timer so its current event winds down.
func (s *Scheduler) SkipTimer(id vdr.TimerID) error {
	_, err := s.client.Exec("MODT %d off", id)
	if err == nil {
		s.lastSkipped = id
	}
	return err
}

// ProcessPending waits for the deactivated timer to release its recording.
// VDR's main loop does the actual work; this just gives it a moment.
func (s *Scheduler) ProcessPending(now time.Time) error {
	if s.lastSkipped == vdr.NoTimer {
		return nil
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		t, err := s.Timer(s.lastSkipped)
		if err != nil || t == nil || !t.Recording {
			return nil
		}
		if time.Now().After(deadline) {
			s.logger.Warn().Int("timer", int(t.ID)).Msg("Timer still recording after scheduler grace period")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// DeleteTimer removes the timer and announces the deletion the way VDR
// notifies plugins, snapshot first.
func (s *Scheduler) DeleteTimer(id vdr.TimerID) error {
	t, _ := s.Timer(id)
	if _, err := s.client.Exec("DELT %d", id); err != nil {
		return err
	}
	delete(s.files, id)
	if t != nil && s.sink != nil {
		s.sink.OnTimerChange(t, vdr.TimerDeleted)
	}
	return nil
}

// MarkTimersDirty is a no-op over SVDRP: VDR persists timers.conf itself on
// every MODT/DELT.
func (s *Scheduler) MarkTimersDirty() {}

// modifyTimerField fetches the raw definition, replaces one field and
// writes it back.
func (s *Scheduler) modifyTimerField(id vdr.TimerID, field int, value string) error {
	lines, err := s.client.Exec("LSTT %d", id)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return vdr.ErrNotFound
	}
	_, def, ok := strings.Cut(strings.TrimSpace(lines[0]), " ")
	if !ok {
		return fmt.Errorf("malformed timer line %q", lines[0])
	}
	fields := strings.SplitN(def, ":", timerFieldCount)
	if len(fields) <= field {
		return fmt.Errorf("timer definition %q too short", def)
	}
	fields[field] = value
	_, err = s.client.Exec("MODT %d %s", id, strings.Join(fields, ":"))
	return err
}

// timerFileField returns the timer's recording name.
func timerFileField(t *vdr.Timer, client *Client) string {
	lines, err := client.Exec("LSTT %d", t.ID)
	if err != nil || len(lines) == 0 {
		return ""
	}
	_, def, ok := strings.Cut(strings.TrimSpace(lines[0]), " ")
	if !ok {
		return ""
	}
	fields := strings.SplitN(def, ":", timerFieldCount)
	if len(fields) <= fieldFile {
		return ""
	}
	return fields[fieldFile]
}
