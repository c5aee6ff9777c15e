// Package waitlist implements a registry of waiting tasks, for use as the
// building block of synchronization primitives, e.g. mutexes, channels, and
// condition variables.
//
// A task that needs to wait calls [Waitlist.Register] with a [Waker], then
// suspends itself, by whatever means suit it (blocking on a channel,
// returning "not ready" from a poll, etc). Notifiers call
// [Waitlist.NotifyOne], [Waitlist.NotifyAny] or [Waitlist.NotifyAll], which
// invoke stored wakers in strict first-in-first-out order. A waiter that
// gives up calls [Waitlist.Cancel] (or [Waitlist.Abandon]), which is safe
// against a concurrent notification, and reports which of the two won.
//
// The registry never blocks, and never decides when to notify. Callers pair
// it with their own condition, following the register then re-check
// protocol: check the condition, register, re-check the condition, suspend.
// [Waitlist.Wait] implements that protocol, for goroutines.
//
// # Architecture
//
// Entries are stored in a growable arena of slots. Free slots form a free
// list, and waiting slots form a singly linked FIFO chain, both threaded
// through the same per-slot link field. Registration and notification are
// O(1). Cancellation of a still-waiting entry is O(n), as there are no
// back-links.
//
// Each slot has an atomic word, packing its [EntryState] with a generation,
// which advances whenever the slot is reclaimed. A [Key] pairs a slot index
// with a generation, so stale keys are detected, even after slot reuse. The
// word may be read without locking, see [Waitlist.State] and
// [Waitlist.Notified].
//
// # Thread Safety
//
// All structural changes happen under a mutex, held for O(1) work, except
// when unlinking a cancelled entry. Wakers are invoked after the mutex is
// released. An atomic flags word allows notifications to return without
// locking, when nobody is waiting.
//
// # Usage
//
//	var (
//	    wl    waitlist.Waitlist
//	    ready atomic.Bool
//	)
//
//	go func() {
//	    ready.Store(true)
//	    wl.NotifyAll()
//	}()
//
//	if err := wl.Wait(ctx, ready.Load); err != nil {
//	    return err
//	}
package waitlist
