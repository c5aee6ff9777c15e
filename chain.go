package waitlist

// chain is the FIFO ordering of registered slots, threaded through the
// arena via slot.next. Head and tail are references (index+1), 0 meaning
// none, so the zero value is an empty chain.
//
// There are no back-links: remove is O(n) in the number of waiting entries,
// in exchange for a single link field per slot.
//
// CALLER MUST HOLD THE STRUCTURAL MUTEX.
type chain struct {
	head uint32
	tail uint32
	len  int
}

// pushBack appends the slot at index to the tail.
func (x *chain) pushBack(a *arena, index uint32, s *slot) {
	ref := index + 1
	s.next = 0
	if x.tail == 0 {
		x.head = ref
	} else {
		a.lookup(x.tail - 1).next = ref
	}
	x.tail = ref
	x.len++
}

// popFront unlinks and returns the head, if any.
func (x *chain) popFront(a *arena) (uint32, *slot, bool) {
	if x.head == 0 {
		return 0, nil, false
	}
	index := x.head - 1
	s := a.lookup(index)
	x.head = s.next
	if x.head == 0 {
		x.tail = 0
	}
	s.next = 0
	x.len--
	return index, s, true
}

// remove unlinks the slot at index, returning false if it was not found.
func (x *chain) remove(a *arena, index uint32) bool {
	ref := index + 1
	var (
		prev    *slot
		prevRef uint32
	)
	for cur := x.head; cur != 0; {
		s := a.lookup(cur - 1)
		if cur == ref {
			if prev == nil {
				x.head = s.next
			} else {
				prev.next = s.next
			}
			if x.tail == ref {
				x.tail = prevRef
			}
			s.next = 0
			x.len--
			return true
		}
		prev, prevRef, cur = s, cur, s.next
	}
	return false
}
