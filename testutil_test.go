package waitlist

import (
	"sync/atomic"
	"testing"
)

// mockWaker counts wakes, like a waker built around an atomic counter.
type mockWaker struct {
	count atomic.Int64
}

func (x *mockWaker) Wake() { x.count.Add(1) }

func (x *mockWaker) notifiedCount() int { return int(x.count.Load()) }

func newMockWakers(n int) []*mockWaker {
	wakers := make([]*mockWaker, n)
	for i := range wakers {
		wakers[i] = new(mockWaker)
	}
	return wakers
}

func registerAll(t *testing.T, wl *Waitlist, wakers []*mockWaker) []Key {
	t.Helper()
	keys := make([]Key, len(wakers))
	for i, w := range wakers {
		key, err := wl.Register(w)
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		keys[i] = key
	}
	return keys
}

// checkInvariants walks the chain and the free list, verifying that every
// allocated slot is reachable exactly once, from exactly one of them (or is
// notified, and in neither), and that the bookkeeping matches.
func checkInvariants(t *testing.T, wl *Waitlist) {
	t.Helper()

	wl.mu.Lock()
	defer wl.mu.Unlock()

	a := &wl.arena
	seen := make(map[uint32]string, a.used)

	var (
		waiting int
		tail    uint32
	)
	for ref := wl.chain.head; ref != 0; {
		if prev, ok := seen[ref-1]; ok {
			t.Fatalf("slot %d reached twice (chain, %s)", ref-1, prev)
		}
		seen[ref-1] = `chain`
		s := a.lookup(ref - 1)
		if s == nil {
			t.Fatalf("chain references unallocated slot %d", ref-1)
		}
		if _, state := s.word.Load(); state != StateRegistered {
			t.Fatalf("chain slot %d has state %s", ref-1, state)
		}
		if s.waker == nil {
			t.Fatalf("chain slot %d has no waker", ref-1)
		}
		waiting++
		tail = ref
		ref = s.next
	}
	if tail != wl.chain.tail {
		t.Fatalf("tail: expected %d got %d", tail, wl.chain.tail)
	}
	if waiting != wl.chain.len {
		t.Fatalf("chain len: expected %d got %d", waiting, wl.chain.len)
	}

	var free int
	for ref := a.free; ref != 0; {
		if prev, ok := seen[ref-1]; ok {
			t.Fatalf("slot %d reached twice (free, %s)", ref-1, prev)
		}
		seen[ref-1] = `free`
		s := a.lookup(ref - 1)
		gen, state := s.word.Load()
		if state != StateEmpty || gen == 0 || s.waker != nil {
			t.Fatalf("free slot %d: gen=%d state=%s waker=%v", ref-1, gen, state, s.waker)
		}
		free++
		ref = s.next
	}

	var notified int
	for index := uint32(0); index < a.used; index++ {
		if _, ok := seen[index]; ok {
			continue
		}
		s := a.lookup(index)
		if _, state := s.word.Load(); state != StateNotified {
			t.Fatalf("slot %d is unreachable with state %s", index, state)
		}
		if s.waker != nil {
			t.Fatalf("notified slot %d retains its waker", index)
		}
		notified++
	}
	if notified != wl.notified {
		t.Fatalf("notified: expected %d got %d", notified, wl.notified)
	}
	if waiting+notified != a.occupied {
		t.Fatalf("occupied: expected %d got %d", waiting+notified, a.occupied)
	}
	if waiting+notified+free != int(a.used) {
		t.Fatalf("used: expected %d got %d", waiting+notified+free, a.used)
	}

	var flags uint32
	if waiting != 0 {
		flags |= flagWaiting
	}
	if notified != 0 {
		flags |= flagNotified
	}
	if v := wl.flags.Load(); v != flags {
		t.Fatalf("flags: expected %b got %b", flags, v)
	}
}
