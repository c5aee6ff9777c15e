package waitlist

import (
	"github.com/joeycumines/logiface"
)

// Log events are never emitted while holding the structural mutex, as
// writers are arbitrary code.

func (x *Waitlist) logger() *logiface.Logger[logiface.Event] {
	if x.opts == nil {
		return nil
	}
	return x.opts.logger
}

// misuse returns a builder for a warning about API misuse, or nil if it is
// disabled or rate limited. The category is the operation.
func (x *Waitlist) misuse(b *logiface.Builder[logiface.Event], op string) *logiface.Builder[logiface.Event] {
	if !b.Enabled() {
		return nil
	}
	if x.opts.limiter != nil {
		if _, ok := x.opts.limiter.Allow(op); !ok {
			b.Release()
			return nil
		}
	}
	return b.Str(`op`, op)
}

func (x *Waitlist) logStale(op string, key Key) {
	if b := x.misuse(x.logger().Warning(), op); b != nil {
		b.Uint64(`key_index`, uint64(key.index)).
			Uint64(`key_generation`, uint64(key.gen)).
			Log(`stale waitlist key`)
	}
}

func (x *Waitlist) logCapacityExceeded(op string, occupied int) {
	if b := x.misuse(x.logger().Err(), op); b != nil {
		b.Int(`occupied`, occupied).
			Int(`max_waiters`, x.opts.maxWaiters).
			Err(ErrCapacityExceeded).
			Log(`waitlist registration rejected`)
	}
}

func (x *Waitlist) logGrow(capacity, occupied int) {
	x.logger().Debug().
		Int(`capacity`, capacity).
		Int(`occupied`, occupied).
		Log(`waitlist arena grown`)
}

func (x *Waitlist) logForward(key Key) {
	x.logger().Trace().
		Uint64(`key_index`, uint64(key.index)).
		Uint64(`key_generation`, uint64(key.gen)).
		Log(`forwarded notification of abandoned waiter`)
}
