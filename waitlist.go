package waitlist

import (
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

type (
	// Waitlist is a registry of waiting tasks, notified in FIFO order.
	//
	// The zero value is ready to use, equivalent to New with no options.
	// A Waitlist must not be copied after first use.
	//
	// Thread Safety: All methods are safe to call concurrently. Structural
	// changes (register, pop, unlink) are serialized by a mutex held for
	// O(1) work only, with the exception of unlinking a waiting entry, which
	// is O(n). Wakers are always invoked after the mutex is released.
	Waitlist struct { // betteralign:ignore
		_ [sizeOfCacheLine]byte //nolint:unused
		// flags is read without the mutex, to skip notifying when nobody is
		// waiting. See flagWaiting and flagNotified.
		flags atomic.Uint32
		_     [sizeOfCacheLine - sizeOfAtomicUint32]byte //nolint:unused

		mu    sync.Mutex
		arena arena
		chain chain
		// notified is the number of slots in StateNotified.
		notified int
		opts     *waitlistOptions
		counters counters
	}

	// Key identifies a single registration. It pairs a slot index with the
	// slot's generation, so that a Key is rejected once its slot has been
	// reclaimed, even if the slot has since been reused. The zero value is
	// never valid.
	Key struct {
		index uint32
		gen   uint32
	}
)

// New initializes a new Waitlist, returning an error if any option is
// invalid.
func New(opts ...Option) (*Waitlist, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Waitlist{opts: cfg}, nil
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	return k == Key{}
}

// String returns a human-readable representation of the key, as
// index@generation.
func (k Key) String() string {
	return fmt.Sprintf(`%d@%d`, k.index, k.gen)
}

// Register appends w to the tail of the waitlist, returning the Key that
// must eventually be passed to Cancel, Abandon or Update, even once notified,
// to release the slot. An error is only possible if WithMaxWaiters was
// configured. A nil w will panic.
//
// The usual protocol is: check the condition, Register, re-check the
// condition, then suspend until woken. Notifiers must change the condition
// before notifying.
func (x *Waitlist) Register(w Waker) (Key, error) {
	if w == nil {
		panic(`waitlist: nil waker`)
	}

	x.lock()
	key, grew, err := x.registerLocked(w)
	occupied, capacity := x.arena.occupied, int(x.arena.capacity)
	x.unlock()

	if err != nil {
		x.counters.rejected.Add(1)
		x.logCapacityExceeded(`register`, occupied)
		return Key{}, err
	}
	x.counters.registered.Add(1)
	if grew {
		x.logGrow(capacity, occupied)
	}
	return key, nil
}

// Cancel removes the registration for key. If it was still waiting, it is
// unlinked, and will never be woken (CancelRemoved). If a notifier raced
// ahead, the waker was already invoked (CancelAlreadyNotified), and the
// caller is responsible for acting on that wakeup. Either way, the key is
// consumed. Any other key reports CancelStale, without side effects.
//
// Calling Cancel on a key that was already consumed is a caller error, but
// is detected as CancelStale.
func (x *Waitlist) Cancel(key Key) CancelOutcome {
	x.lock()
	outcome := x.cancelLocked(key)
	x.unlock()
	x.recordCancel(`cancel`, key, outcome)
	return outcome
}

// Abandon is Cancel, except that a notification already delivered to key is
// passed on to the next waiter, if any, so that it is not lost. This is the
// appropriate way to give up waiting, when the caller will not otherwise act
// on a notification it may have received. The forwarded result reports
// whether another waiter was woken.
func (x *Waitlist) Abandon(key Key) (outcome CancelOutcome, forwarded bool) {
	x.lock()
	outcome = x.cancelLocked(key)
	var w Waker
	if outcome == CancelAlreadyNotified {
		w = x.popLocked()
	}
	x.unlock()

	x.recordCancel(`abandon`, key, outcome)
	if w == nil {
		return outcome, false
	}
	x.counters.forwarded.Add(1)
	x.counters.notified.Add(1)
	x.logForward(key)
	w.Wake()
	return outcome, true
}

// Update replaces the waker stored for key. If the entry is still waiting,
// it keeps its key and its position in the FIFO order. If it was already
// notified, the notification is consumed, and the waker is registered anew,
// at the tail, under a new key. Stale keys fail with a *KeyError wrapping
// ErrStaleKey. A nil w will panic.
func (x *Waitlist) Update(key Key, w Waker) (Key, error) {
	if w == nil {
		panic(`waitlist: nil waker`)
	}

	x.lock()
	s, state, ok := x.resolve(key)
	if !ok {
		x.unlock()
		x.counters.stale.Add(1)
		x.logStale(`update`, key)
		return Key{}, &KeyError{Op: `update`, Key: key, Err: ErrStaleKey}
	}

	if state == StateRegistered {
		s.waker = w
		x.unlock()
		return key, nil
	}

	x.releaseNotifiedLocked(key, s)
	// cannot fail, a slot was just released
	newKey, _, err := x.registerLocked(w)
	x.unlock()

	x.counters.alreadyNotified.Add(1)
	if err != nil {
		return Key{}, err
	}
	x.counters.registered.Add(1)
	return newKey, nil
}

// NotifyOne wakes the earliest registered waiter, returning false if there
// was none. It does not take the mutex if nobody is waiting.
func (x *Waitlist) NotifyOne() bool {
	if x.flags.Load()&flagWaiting == 0 {
		return false
	}

	x.lock()
	w := x.popLocked()
	x.unlock()

	if w == nil {
		return false
	}
	x.counters.notified.Add(1)
	w.Wake()
	return true
}

// NotifyAny is NotifyOne, except it does nothing while any notified waiter
// has yet to acknowledge its notification (via Cancel, Abandon or Update).
// It suits primitives where a single woken task is enough to make progress,
// e.g. a mutex.
func (x *Waitlist) NotifyAny() bool {
	if flags := x.flags.Load(); flags&flagNotified != 0 || flags&flagWaiting == 0 {
		return false
	}

	x.lock()
	var w Waker
	// the count may have changed between checking the flags and locking
	if x.notified == 0 {
		w = x.popLocked()
	}
	x.unlock()

	if w == nil {
		return false
	}
	x.counters.notified.Add(1)
	w.Wake()
	return true
}

// NotifyAll wakes every registered waiter, in FIFO order, returning the
// number woken. Wakers are invoked after the mutex is released. If a waker
// panics, the remaining wakers are still invoked, before the panic
// propagates.
func (x *Waitlist) NotifyAll() int {
	if x.flags.Load()&flagWaiting == 0 {
		return 0
	}

	buf := getWakerBuffer()
	defer putWakerBuffer(buf)

	x.lock()
	for {
		w := x.popLocked()
		if w == nil {
			break
		}
		*buf = append(*buf, w)
	}
	x.unlock()

	n := len(*buf)
	if n != 0 {
		x.counters.notified.Add(uint64(n))
		wakeAll(*buf)
	}
	return n
}

// State returns the current state of the entry for key, without locking.
// Stale keys fail with a *KeyError wrapping ErrStaleKey.
func (x *Waitlist) State(key Key) (EntryState, error) {
	if key.gen != 0 {
		if s := x.arena.lookup(key.index); s != nil {
			if gen, state := s.word.Load(); gen == key.gen && state != StateEmpty {
				return state, nil
			}
		}
	}
	return StateEmpty, &KeyError{Op: `state`, Key: key, Err: ErrStaleKey}
}

// Notified reports whether the entry for key has been notified, and not yet
// acknowledged, without locking. It is false for stale keys.
func (x *Waitlist) Notified(key Key) bool {
	state, err := x.State(key)
	return err == nil && state == StateNotified
}

// Len returns the number of registered entries that are waiting to be
// notified.
func (x *Waitlist) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.chain.len
}

// IsEmpty reports whether no entries are waiting, without locking.
func (x *Waitlist) IsEmpty() bool {
	return x.flags.Load()&flagWaiting == 0
}

// Keys returns an iterator over the keys of the waiting entries, in FIFO
// order. The keys are snapshotted when iteration starts.
func (x *Waitlist) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		x.mu.Lock()
		keys := make([]Key, 0, x.chain.len)
		for ref := x.chain.head; ref != 0; {
			s := x.arena.lookup(ref - 1)
			gen, _ := s.word.Load()
			keys = append(keys, Key{index: ref - 1, gen: gen})
			ref = s.next
		}
		x.mu.Unlock()

		for _, key := range keys {
			if !yield(key) {
				return
			}
		}
	}
}

func (x *Waitlist) lock() {
	x.mu.Lock()
}

// unlock republishes flags then releases the mutex.
func (x *Waitlist) unlock() {
	var flags uint32
	if x.chain.len != 0 {
		flags |= flagWaiting
	}
	if x.notified != 0 {
		flags |= flagNotified
	}
	x.flags.Store(flags)
	x.mu.Unlock()
}

func (x *Waitlist) capacityHint() int {
	if x.opts == nil {
		return 0
	}
	return x.opts.capacity
}

func (x *Waitlist) maxWaiters() int {
	if x.opts == nil {
		return 0
	}
	return x.opts.maxWaiters
}

// registerLocked implements Empty → Registered.
func (x *Waitlist) registerLocked(w Waker) (key Key, grew bool, err error) {
	if limit := x.maxWaiters(); limit > 0 && x.arena.occupied >= limit {
		return Key{}, false, ErrCapacityExceeded
	}

	index, s, grew, ok := x.arena.allocate(x.capacityHint())
	if !ok {
		return Key{}, false, ErrCapacityExceeded
	}

	gen, _ := s.word.Load()
	s.waker = w
	if !s.word.TryTransition(gen, StateEmpty, StateRegistered) {
		panic(`waitlist: inconsistent entry state`)
	}
	x.chain.pushBack(&x.arena, index, s)

	return Key{index: index, gen: gen}, grew, nil
}

// resolve validates key, returning its slot and (live) state.
func (x *Waitlist) resolve(key Key) (*slot, EntryState, bool) {
	if key.gen == 0 {
		return nil, StateEmpty, false
	}
	s := x.arena.lookup(key.index)
	if s == nil {
		return nil, StateEmpty, false
	}
	gen, state := s.word.Load()
	if gen != key.gen || (state != StateRegistered && state != StateNotified) {
		return nil, StateEmpty, false
	}
	return s, state, true
}

func (x *Waitlist) cancelLocked(key Key) CancelOutcome {
	s, state, ok := x.resolve(key)
	if !ok {
		return CancelStale
	}

	if state == StateNotified {
		// already unlinked, by the pop that notified it
		x.releaseNotifiedLocked(key, s)
		return CancelAlreadyNotified
	}

	if !s.word.TryTransition(key.gen, StateRegistered, StateRemoved) {
		panic(`waitlist: inconsistent entry state`)
	}
	if !x.chain.remove(&x.arena, key.index) {
		panic(`waitlist: registered entry missing from chain`)
	}
	x.arena.deallocate(key.index, s)
	return CancelRemoved
}

// releaseNotifiedLocked implements Notified → Removed → Empty.
func (x *Waitlist) releaseNotifiedLocked(key Key, s *slot) {
	if !s.word.TryTransition(key.gen, StateNotified, StateRemoved) {
		panic(`waitlist: inconsistent entry state`)
	}
	x.notified--
	x.arena.deallocate(key.index, s)
}

// popLocked pops the head of the chain, implementing Registered → Notified,
// and returns the waker to invoke (after unlocking), or nil if the chain was
// empty.
func (x *Waitlist) popLocked() Waker {
	_, s, ok := x.chain.popFront(&x.arena)
	if !ok {
		return nil
	}
	gen, _ := s.word.Load()
	if !s.word.TryTransition(gen, StateRegistered, StateNotified) {
		panic(`waitlist: inconsistent entry state`)
	}
	w := s.waker
	s.waker = nil
	x.notified++
	return w
}

func (x *Waitlist) recordCancel(op string, key Key, outcome CancelOutcome) {
	switch outcome {
	case CancelRemoved:
		x.counters.removed.Add(1)
	case CancelAlreadyNotified:
		x.counters.alreadyNotified.Add(1)
	default:
		x.counters.stale.Add(1)
		x.logStale(op, key)
	}
}
