package timeshift

import "errors"

var (
	// ErrChannelNotFound is returned by Start when the requested channel
	// number does not resolve.
	ErrChannelNotFound = errors.New("timeshift: channel not found")

	// ErrStaleTimer is returned by Stop when the session's timer is no
	// longer in the scheduler's live set. The session reference is cleared
	// as a side effect.
	ErrStaleTimer = errors.New("timeshift: session timer no longer exists")

	// ErrNoTimerAdopted is returned by Start when the scheduler accepted
	// the instant recording but never announced a timer to adopt.
	ErrNoTimerAdopted = errors.New("timeshift: no timer adopted")
)
