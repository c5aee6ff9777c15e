package waitlist

import (
	"sync/atomic"
)

type (
	// Stats is a snapshot of a Waitlist's counters, see Waitlist.Stats.
	Stats struct {
		// Registered counts successful registrations, including Update calls
		// that re-registered a notified entry.
		Registered uint64
		// Notified counts wakers invoked, by any notify operation, including
		// notifications forwarded by Abandon.
		Notified uint64
		// Removed counts cancellations that unlinked a waiting entry.
		Removed uint64
		// AlreadyNotified counts cancellations (and updates) that acknowledged
		// a notification.
		AlreadyNotified uint64
		// Forwarded counts notifications passed on by Abandon.
		Forwarded uint64
		// Stale counts operations rejected due to a stale key.
		Stale uint64
		// Rejected counts registrations that failed with ErrCapacityExceeded.
		Rejected uint64

		// Waiting is the number of entries in the FIFO chain.
		Waiting int
		// Occupied is the number of slots in use, i.e. waiting entries plus
		// notified entries not yet acknowledged.
		Occupied int
		// Capacity is the number of slots allocated.
		Capacity int
	}

	// counters are the lock-free part of Stats.
	counters struct {
		registered      atomic.Uint64
		notified        atomic.Uint64
		removed         atomic.Uint64
		alreadyNotified atomic.Uint64
		forwarded       atomic.Uint64
		stale           atomic.Uint64
		rejected        atomic.Uint64
	}
)

func (x *counters) load(s *Stats) {
	s.Registered = x.registered.Load()
	s.Notified = x.notified.Load()
	s.Removed = x.removed.Load()
	s.AlreadyNotified = x.alreadyNotified.Load()
	s.Forwarded = x.forwarded.Load()
	s.Stale = x.stale.Load()
	s.Rejected = x.rejected.Load()
}

// Stats returns a snapshot of the counters, and the current occupancy.
// Counters are read without locking, and are not mutually consistent under
// concurrent use.
func (x *Waitlist) Stats() (s Stats) {
	x.counters.load(&s)
	x.mu.Lock()
	s.Waiting = x.chain.len
	s.Occupied = x.arena.occupied
	s.Capacity = int(x.arena.capacity)
	x.mu.Unlock()
	return s
}
