package waitlist

import (
	"math"
	"math/bits"
	"sync/atomic"
)

const (
	// minPageSize is the smallest size of the first arena page.
	minPageSize = 8

	// maxInitialPageSize caps the size of the first arena page, regardless
	// of the capacity hint. Larger registries reach their size by doubling.
	maxInitialPageSize = 1 << 16

	// maxPages bounds the page table. Page sizes double, so even a first
	// page of minPageSize slots exhausts the uint32 index space first.
	maxPages = 32

	// maxSlots is the index space: references are stored as index+1 in a
	// uint32, with 0 reserved for "none".
	maxSlots = math.MaxUint32 - 1
)

type (
	// slot is a storage cell, owned exclusively by the arena.
	slot struct {
		// waker is only set while the slot is StateRegistered.
		waker Waker
		word  slotWord
		// next is a reference (index+1) to the next slot in either the FIFO
		// chain or the free list. A slot is never in both.
		next uint32
	}

	// page is a fixed block of slots. Pages are never moved or freed, which
	// allows lock-free readers to hold a *slot across growth.
	page []slot

	// arena allocates and reclaims slots in O(1), growing by doubling.
	//
	// Page k holds base<<k slots, and covers indexes
	// [base*(2^k - 1), base*(2^(k+1) - 1)).
	//
	// Thread Safety: allocate, deallocate and grow require the structural
	// mutex. lookup is safe to call concurrently with all of them.
	arena struct {
		pages [maxPages]atomic.Pointer[page]
		// base is the size of page 0, a power of two, or 0 until first growth.
		base atomic.Uint32
		// free is a reference (index+1) to the head of the free list.
		free uint32
		// used is the high-water mark of indexes handed out.
		used uint32
		// capacity is the total number of slots across all pages.
		capacity uint32
		npages   uint32
		occupied int
	}
)

// pageSizeFor rounds a capacity hint up to a power of two, within
// [minPageSize, maxInitialPageSize].
func pageSizeFor(hint int) uint32 {
	if hint <= minPageSize {
		return minPageSize
	}
	if hint >= maxInitialPageSize {
		return maxInitialPageSize
	}
	return 1 << bits.Len32(uint32(hint-1))
}

// pageOf maps an index to its page number, and its offset within that page.
func pageOf(index, base uint32) (k int, offset uint64) {
	q := uint64(index)/uint64(base) + 1
	k = bits.Len64(q) - 1
	offset = uint64(index) - uint64(base)*(uint64(1)<<k-1)
	return
}

// lookup returns the slot for index, or nil if it was never allocated.
func (x *arena) lookup(index uint32) *slot {
	base := x.base.Load()
	if base == 0 {
		return nil
	}
	k, offset := pageOf(index, base)
	if k >= maxPages {
		return nil
	}
	p := x.pages[k].Load()
	if p == nil || offset >= uint64(len(*p)) {
		return nil
	}
	return &(*p)[offset]
}

// allocate takes a slot off the free list, or the next never-used slot,
// growing if necessary. The returned slot is StateEmpty, and carries the
// generation its Key must use. The grew result indicates that a page was
// added. Returns ok false only if the index space is exhausted.
func (x *arena) allocate(hint int) (index uint32, s *slot, grew, ok bool) {
	if x.free != 0 {
		index = x.free - 1
		s = x.lookup(index)
		x.free = s.next
		s.next = 0
		x.occupied++
		return index, s, false, true
	}

	if x.used == x.capacity {
		if !x.grow(hint) {
			return 0, nil, false, false
		}
		grew = true
	}

	index = x.used
	x.used++
	s = x.lookup(index)
	s.word.Store(1, StateEmpty)
	x.occupied++
	return index, s, grew, true
}

// deallocate pushes the slot onto the free list, advancing its generation so
// that keys issued for the old one are detected as stale.
func (x *arena) deallocate(index uint32, s *slot) {
	gen, _ := s.word.Load()
	s.waker = nil
	s.word.Store(nextGeneration(gen), StateEmpty)
	s.next = x.free
	x.free = index + 1
	x.occupied--
}

// grow adds a page, doubling the capacity (after the first page).
func (x *arena) grow(hint int) bool {
	base := x.base.Load()
	if base == 0 {
		base = pageSizeFor(hint)
		x.base.Store(base)
	}

	if x.npages >= maxPages {
		return false
	}

	size := uint64(base) << x.npages
	if remaining := uint64(maxSlots) - uint64(x.capacity); size > remaining {
		if remaining == 0 {
			return false
		}
		size = remaining
	}

	p := make(page, size)
	x.pages[x.npages].Store(&p)
	x.npages++
	x.capacity += uint32(size)
	return true
}
