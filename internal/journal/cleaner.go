package journal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/storage"
)

// Cleaner prunes journal entries past their retention period
type Cleaner struct {
	sessions      storage.SessionStore
	retentionDays int
	cleanupTime   time.Time // Time of day to clean up (only hour and minute are used)
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewCleaner creates a new retention cleaner
func NewCleaner(sessions storage.SessionStore, retentionDays int, cleanupTime string, logger zerolog.Logger) (*Cleaner, error) {
	// Parse cleanup time (HH:MM format)
	parsedTime, err := time.Parse("15:04", cleanupTime)
	if err != nil {
		return nil, err
	}

	c := &Cleaner{
		sessions:      sessions,
		retentionDays: retentionDays,
		cleanupTime:   parsedTime,
		logger:        logger.With().Str("component", "journal-cleaner").Logger(),
		stopChan:      make(chan struct{}),
	}

	return c, nil
}

// Start begins the cleaner
func (c *Cleaner) Start() {
	go c.run()
	c.logger.Info().
		Str("cleanup_time", c.cleanupTime.Format("15:04")).
		Int("retention_days", c.retentionDays).
		Msg("Journal retention cleaner started")
}

// Stop stops the cleaner
func (c *Cleaner) Stop() {
	close(c.stopChan)
	c.logger.Info().Msg("Journal retention cleaner stopped")
}

// run is the main cleaner loop
func (c *Cleaner) run() {
	for {
		nextCleanup := c.calculateNextCleanup()
		waitDuration := time.Until(nextCleanup)

		c.logger.Info().
			Time("next_cleanup", nextCleanup).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next journal cleanup")

		select {
		case <-time.After(waitDuration):
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

// calculateNextCleanup calculates the next cleanup time
func (c *Cleaner) calculateNextCleanup() time.Time {
	now := time.Now()

	todayCleanup := time.Date(
		now.Year(), now.Month(), now.Day(),
		c.cleanupTime.Hour(), c.cleanupTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's cleanup time, schedule for tomorrow
	if now.After(todayCleanup) {
		return todayCleanup.AddDate(0, 0, 1)
	}

	return todayCleanup
}

// performCleanup deletes journal entries older than the retention period
func (c *Cleaner) performCleanup() {
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := c.sessions.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to clean up old journal entries")
		return
	}

	c.logger.Info().
		Int("events_deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Journal cleanup complete")
}
