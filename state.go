package waitlist

import (
	"sync/atomic"
)

// EntryState represents the state of a single registration.
//
// State Machine:
//
//	StateEmpty (0) → StateRegistered (1)     [Register, Update]
//	StateRegistered (1) → StateNotified (2)  [NotifyOne, NotifyAll, NotifyAny, Abandon]
//	StateRegistered (1) → StateRemoved (3)   [Cancel, Abandon]
//	StateNotified (2) → StateRemoved (3)     [Cancel, Abandon, Update]
//	StateRemoved (3) → StateEmpty (0)        [slot reclaimed, generation advanced]
//
// State Transition Rules:
//   - Every transition happens while holding the structural mutex
//   - Use TryTransition() (CAS) for transitions between live states
//   - Use Store() only when the slot changes generation (allocate, reclaim)
//   - Reads (Load) never require the mutex
type EntryState uint32

const (
	// StateEmpty indicates the slot is unused, either on the free list or
	// freshly allocated, with no waker stored.
	StateEmpty EntryState = 0
	// StateRegistered indicates a waker is stored, and the slot is linked
	// into the FIFO chain.
	StateRegistered EntryState = 1
	// StateNotified indicates the slot was popped from the chain and its
	// waker was (or is about to be) invoked, but the waiter has not yet
	// acknowledged it, via Cancel, Abandon or Update.
	StateNotified EntryState = 2
	// StateRemoved indicates the waiter gave up, and the slot is being
	// reclaimed. It is only observable by lock-free readers, and only
	// briefly.
	StateRemoved EntryState = 3
)

// String returns a human-readable representation of the state.
func (s EntryState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateRegistered:
		return "Registered"
	case StateNotified:
		return "Notified"
	case StateRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Bits of Waitlist.flags, republished every time the structural mutex is
// released.
const (
	// flagWaiting is set while at least one entry is in the FIFO chain.
	flagWaiting uint32 = 1 << iota
	// flagNotified is set while at least one entry is in StateNotified.
	flagNotified
)

// slotWord packs a slot's generation (high 32 bits) and EntryState (low 32
// bits) into a single atomic word, so that a reader can validate a Key and
// observe the state with one load.
type slotWord struct {
	v atomic.Uint64
}

func packWord(gen uint32, state EntryState) uint64 {
	return uint64(gen)<<32 | uint64(state)
}

func unpackWord(v uint64) (gen uint32, state EntryState) {
	return uint32(v >> 32), EntryState(uint32(v))
}

// Load returns the generation and state atomically.
func (s *slotWord) Load() (gen uint32, state EntryState) {
	return unpackWord(s.v.Load())
}

// Store atomically stores a new generation and state.
// PERFORMANCE: No transition validation.
func (s *slotWord) Store(gen uint32, state EntryState) {
	s.v.Store(packWord(gen, state))
}

// TryTransition attempts to atomically transition from one state to another,
// within the same generation. Returns true if the transition was successful.
func (s *slotWord) TryTransition(gen uint32, from, to EntryState) bool {
	return s.v.CompareAndSwap(packWord(gen, from), packWord(gen, to))
}

// nextGeneration returns the generation following gen. Zero is reserved for
// the zero Key, and is skipped on wrap.
func nextGeneration(gen uint32) uint32 {
	gen++
	if gen == 0 {
		gen = 1
	}
	return gen
}
