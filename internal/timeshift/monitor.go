package timeshift

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/metrics"
)

// Defaults for the inactivity monitor.
const (
	DefaultCheckIntervalTicks = 60
	DefaultPromptTimeout      = 300 * time.Second
)

const continuePrompt = "Press key to continue permanent timeshift"

// Monitor watches for unattended sessions. It is driven by an external
// heartbeat of roughly one tick per second; every check interval it asks an
// idle viewer whether the background recording should keep running.
type Monitor struct {
	controller *Controller
	activity   ActivitySensor
	prompter   Prompter
	logger     zerolog.Logger

	checkEvery    int
	promptTimeout time.Duration
	ticks         int
}

// NewMonitor wires an inactivity monitor. Non-positive intervals and
// timeouts fall back to the defaults.
func NewMonitor(controller *Controller, activity ActivitySensor, prompter Prompter,
	checkEvery int, promptTimeout time.Duration, logger zerolog.Logger) *Monitor {
	if checkEvery <= 0 {
		checkEvery = DefaultCheckIntervalTicks
	}
	if promptTimeout <= 0 {
		promptTimeout = DefaultPromptTimeout
	}
	return &Monitor{
		controller:    controller,
		activity:      activity,
		prompter:      prompter,
		logger:        logger.With().Str("component", "monitor").Logger(),
		checkEvery:    checkEvery,
		promptTimeout: promptTimeout,
	}
}

// Tick advances the heartbeat counter. On every checkEvery-th tick the
// monitor runs its inactivity check; the counter resets regardless of the
// outcome. Confirm blocks the caller, so no other event is processed while
// the prompt is up.
func (m *Monitor) Tick() {
	m.ticks++
	if m.ticks < m.checkEvery {
		return
	}
	m.ticks = 0

	if m.controller.Phase() != PhaseActive {
		return
	}
	if !m.activity.IsUserInactive() {
		return
	}

	metrics.InactivityPrompts.Inc()
	m.logger.Debug().Msg("Viewer idle, asking whether to keep the session")
	if m.prompter.Confirm(continuePrompt, m.promptTimeout, true) {
		// Silence means consent here: an unattended box keeps its buffer.
		return
	}
	m.logger.Info().Msg("Viewer declined, ending unattended session")
	if err := m.controller.Stop(StopInactivity); err != nil {
		m.logger.Error().Err(err).Msg("Stopping unattended session failed")
	}
}
