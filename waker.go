package waitlist

import (
	"sync"
)

// maxPooledWakerBuffer bounds the capacity of buffers returned to the pool,
// as sync.Pool depends on each item consuming roughly the same amount of
// memory.
const maxPooledWakerBuffer = 1 << 10

type (
	// Waker signals a suspended task that it should re-check its condition.
	// Wake is called at most once per registration, without any lock held,
	// and should not block.
	Waker interface {
		Wake()
	}

	// WakerFunc adapts a function to the Waker interface.
	WakerFunc func()

	// ChanWaker is a Waker backed by a channel with a buffer of one. Wakes
	// coalesce: if a wake is already pending, further wakes are dropped.
	// Instances must be initialized using NewChanWaker.
	ChanWaker struct {
		ch chan struct{}
	}
)

var (
	// wakerBufferPool holds buffers used by NotifyAll, to collect wakers
	// while locked, for invocation after unlocking.
	wakerBufferPool = sync.Pool{New: func() any {
		b := make([]Waker, 0, 16)
		return &b
	}}

	// compile time assertions

	_ Waker = WakerFunc(nil)
	_ Waker = (*ChanWaker)(nil)
)

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// NewChanWaker initializes a new ChanWaker.
func NewChanWaker() *ChanWaker {
	return &ChanWaker{ch: make(chan struct{}, 1)}
}

// Wake performs a non-blocking send.
func (x *ChanWaker) Wake() {
	select {
	case x.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives a value per (coalesced) wake.
func (x *ChanWaker) C() <-chan struct{} {
	return x.ch
}

func getWakerBuffer() *[]Waker {
	return wakerBufferPool.Get().(*[]Waker)
}

// putWakerBuffer clears the buffer, so it retains no wakers, and returns it
// to the pool.
func putWakerBuffer(b *[]Waker) {
	if cap(*b) > maxPooledWakerBuffer {
		return
	}
	clear(*b)
	*b = (*b)[:0]
	wakerBufferPool.Put(b)
}

// wakeAll invokes each waker, in order. If one panics, the rest are still
// invoked, before the panic continues.
func wakeAll(wakers []Waker) {
	var i int
	defer func() {
		if i < len(wakers) {
			wakeAll(wakers[i+1:])
		}
	}()
	for ; i < len(wakers); i++ {
		wakers[i].Wake()
	}
}
