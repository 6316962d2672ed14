package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
}

// SessionStore persists the session journal and the active session record.
type SessionStore interface {
	// AppendEvent appends one journal entry.
	AppendEvent(ctx context.Context, ev SessionEvent) error

	// ListEvents returns the journal entries for a date (YYYY-MM-DD),
	// oldest first.
	ListEvents(ctx context.Context, date string) ([]SessionEvent, error)

	// DeleteEventsBefore removes journal entries older than cutoff and
	// returns how many were deleted.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// SaveActive persists the active session record, replacing any
	// previous one.
	SaveActive(ctx context.Context, s ActiveSession) error

	// GetActive returns the persisted active session, or ErrNotFound.
	GetActive(ctx context.Context) (*ActiveSession, error)

	// ClearActive removes the persisted active session. Clearing an
	// absent record is not an error.
	ClearActive(ctx context.Context) error
}
