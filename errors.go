package waitlist

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleKey indicates a Key that was never issued, or whose slot has
	// since been reclaimed (and possibly reused by another waiter).
	ErrStaleKey = errors.New(`waitlist: stale key`)

	// ErrCapacityExceeded is returned by Register when the limit configured
	// by WithMaxWaiters is reached, or the index space is exhausted.
	ErrCapacityExceeded = errors.New(`waitlist: capacity exceeded`)
)

// CancelOutcome reports how Cancel (or Abandon) resolved.
type CancelOutcome int

const (
	// CancelStale indicates the key was invalid, or already consumed. No
	// state was modified.
	CancelStale CancelOutcome = iota
	// CancelRemoved indicates the entry was still waiting, and has been
	// unlinked and reclaimed. It will not be woken.
	CancelRemoved
	// CancelAlreadyNotified indicates a notifier got there first. The waker
	// was (or is being) invoked, and the slot has been reclaimed. Callers
	// that will not act on the notification should pass it on, see Abandon.
	CancelAlreadyNotified
)

// String returns a human-readable representation of the outcome.
func (x CancelOutcome) String() string {
	switch x {
	case CancelStale:
		return "Stale"
	case CancelRemoved:
		return "Removed"
	case CancelAlreadyNotified:
		return "AlreadyNotified"
	default:
		return fmt.Sprintf("CancelOutcome(%d)", int(x))
	}
}

// KeyError records a failed operation on a Key.
// Use errors.Is to match the cause, e.g. ErrStaleKey.
type KeyError struct {
	Err error
	Op  string
	Key Key
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return e.Op + ` ` + e.Key.String() + `: ` + e.Err.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *KeyError) Unwrap() error {
	return e.Err
}
