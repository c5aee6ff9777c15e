package waitlist

import (
	"context"
)

// Wait blocks until ready returns true, or ctx is canceled. It follows the
// register then re-check protocol, so a notification sent after ready
// becomes true, by a notifier that made it true, cannot be missed.
//
// Each time Wait is woken, ready is re-checked, and if it is still false
// (e.g. another task got there first), the caller re-registers, at the tail.
// If ctx is canceled, the registration is abandoned, forwarding any
// notification it had already received, see Abandon.
//
// Only the ready func is called while "holding" a registration, and it must
// not block. The error is either ctx.Err(), or an error from Register.
// Providing a nil ctx or ready will cause a panic.
func (x *Waitlist) Wait(ctx context.Context, ready func() bool) error {
	if ctx == nil {
		panic(`waitlist: nil context`)
	}
	if ready == nil {
		panic(`waitlist: nil ready func`)
	}

	// guard context cancel - nice to have consistent behavior
	if err := ctx.Err(); err != nil {
		return err
	}

	if ready() {
		return nil
	}

	// note: reused across iterations, each registration wakes it at most once,
	// and that wake is always received before re-registering
	waker := NewChanWaker()

	for {
		key, err := x.Register(waker)
		if err != nil {
			return err
		}

		if ready() {
			// acknowledges the notification, if any, which we are acting on
			x.Cancel(key)
			return nil
		}

		select {
		case <-ctx.Done():
			x.Abandon(key)
			return ctx.Err()

		case <-waker.C():
			x.Cancel(key)
		}

		if ready() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
