package journal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/metrics"
	"github.com/goodtune/permashift/internal/storage"
	"github.com/goodtune/permashift/internal/timeshift"
)

// Journal writes session lifecycle events and the active session record to
// storage. Storage failures are logged and dropped so a broken journal can
// never break a running session.
type Journal struct {
	sessions storage.SessionStore
	clock    timeshift.Clock
	logger   zerolog.Logger
	timeout  time.Duration
}

// New creates a journal on top of a session store.
func New(sessions storage.SessionStore, clock timeshift.Clock, logger zerolog.Logger) *Journal {
	return &Journal{
		sessions: sessions,
		clock:    clock,
		logger:   logger.With().Str("component", "journal").Logger(),
		timeout:  5 * time.Second,
	}
}

// Record appends one lifecycle event, filling in ID and timestamp.
func (j *Journal) Record(ev storage.SessionEvent) {
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	if ev.At.IsZero() {
		ev.At = j.clock.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.sessions.AppendEvent(ctx, ev); err != nil {
		j.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Dropping journal event")
		metrics.JournalErrors.Inc()
		return
	}
	metrics.JournalEvents.WithLabelValues(string(ev.Kind)).Inc()
}

// SaveActive persists the active session record.
func (j *Journal) SaveActive(s storage.ActiveSession) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.sessions.SaveActive(ctx, s); err != nil {
		j.logger.Error().Err(err).Int("timer", s.TimerID).Msg("Persisting active session failed")
		metrics.JournalErrors.Inc()
	}
}

// ClearActive removes the persisted active session record.
func (j *Journal) ClearActive() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.sessions.ClearActive(ctx); err != nil {
		j.logger.Error().Err(err).Msg("Clearing active session failed")
		metrics.JournalErrors.Inc()
	}
}

// Recover returns the session persisted by an earlier run, or nil when
// there is none.
func (j *Journal) Recover(ctx context.Context) (*storage.ActiveSession, error) {
	s, err := j.sessions.GetActive(ctx)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func newEventID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}
