package connector

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const maxRingBufferCapacity = 1 << 31

type ringSlot[T any] struct {
	ready atomic.Bool
	item  T
}

// RingBuffer implements a [Connector] with a bounded lock-free ring.
// Readers and writers only fall back to the mutex when the ring
// is empty or full.
type RingBuffer[T any] struct {
	// head in the upper 32 bits, tail in the lower 32 bits
	headTail atomic.Uint64

	_ cpu.CacheLinePad

	closed atomic.Bool

	_ cpu.CacheLinePad

	waitingWriters atomic.Bool

	_ cpu.CacheLinePad

	waitingReaders atomic.Bool

	_ cpu.CacheLinePad

	capacity uint32
	mask     uint32

	mux      *sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	slots []ringSlot[T]
}

// NewRingBuffer returns a [RingBuffer] holding at least size items.
// The capacity is rounded up to a power of two.
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	capacity := uint64(1)
	for capacity < size && capacity < maxRingBufferCapacity {
		capacity <<= 1
	}

	mux := &sync.Mutex{}

	return &RingBuffer[T]{
		capacity: uint32(capacity),
		mask:     uint32(capacity - 1),

		mux:      mux,
		notEmpty: sync.NewCond(mux),
		notFull:  sync.NewCond(mux),

		slots: make([]ringSlot[T], capacity),
	}
}

func packHeadTail(head, tail uint32) uint64 {
	return uint64(head)<<32 | uint64(tail)
}

func unpackHeadTail(headTail uint64) (head, tail uint32) {
	return uint32(headTail >> 32), uint32(headTail)
}

func (rb *RingBuffer[T]) push(item T) bool {
	for {
		headTail := rb.headTail.Load()
		head, tail := unpackHeadTail(headTail)

		if head-tail >= rb.capacity {
			return false
		}

		slot := &rb.slots[head&rb.mask]

		// the previous reader of the slot has not released it yet
		if slot.ready.Load() {
			runtime.Gosched()
			continue
		}

		if !rb.headTail.CompareAndSwap(headTail, packHeadTail(head+1, tail)) {
			runtime.Gosched()
			continue
		}

		slot.item = item
		slot.ready.Store(true)

		return true
	}
}

func (rb *RingBuffer[T]) pop() (T, bool) {
	for {
		headTail := rb.headTail.Load()
		head, tail := unpackHeadTail(headTail)

		if head == tail {
			var zero T
			return zero, false
		}

		slot := &rb.slots[tail&rb.mask]

		// claimed by a writer that is still storing the item
		if !slot.ready.Load() {
			runtime.Gosched()
			continue
		}

		if !rb.headTail.CompareAndSwap(headTail, packHeadTail(head, tail+1)) {
			runtime.Gosched()
			continue
		}

		item := slot.item
		var zero T
		slot.item = zero
		slot.ready.Store(false)

		return item, true
	}
}

// Write adds an item, blocking while the ring is full.
// It returns [ErrClosed] once the ring is closed.
func (rb *RingBuffer[T]) Write(item T) error {
	if rb.closed.Load() {
		return ErrClosed
	}

	for !rb.push(item) {
		runtime.Gosched()
		if rb.push(item) {
			break
		}

		rb.mux.Lock()
		rb.waitingWriters.Store(true)

		// a reader may have freed a slot before seeing the flag
		if rb.push(item) {
			rb.mux.Unlock()
			break
		}

		if rb.closed.Load() {
			rb.mux.Unlock()
			return ErrClosed
		}

		rb.notFull.Wait()
		rb.mux.Unlock()
	}

	if rb.waitingReaders.Load() {
		rb.mux.Lock()
		rb.waitingReaders.Store(false)
		rb.notEmpty.Broadcast()
		rb.mux.Unlock()
	}

	return nil
}

// Read removes an item, blocking while the ring is empty.
// Items written before [RingBuffer.Close] are still returned,
// then [ErrClosed].
func (rb *RingBuffer[T]) Read() (T, error) {
	item, ok := rb.pop()
	for !ok {
		runtime.Gosched()
		if item, ok = rb.pop(); ok {
			break
		}

		rb.mux.Lock()
		rb.waitingReaders.Store(true)

		// a writer may have pushed before seeing the flag
		if item, ok = rb.pop(); ok {
			rb.mux.Unlock()
			break
		}

		if rb.closed.Load() {
			rb.mux.Unlock()
			return item, ErrClosed
		}

		rb.notEmpty.Wait()
		rb.mux.Unlock()

		item, ok = rb.pop()
	}

	if rb.waitingWriters.Load() {
		rb.mux.Lock()
		rb.waitingWriters.Store(false)
		rb.notFull.Broadcast()
		rb.mux.Unlock()
	}

	return item, nil
}

// Len returns the number of buffered items.
func (rb *RingBuffer[T]) Len() int {
	head, tail := unpackHeadTail(rb.headTail.Load())
	return int(head - tail)
}

// Close marks the ring as closed and releases blocked readers and writers.
func (rb *RingBuffer[T]) Close() {
	if !rb.closed.CompareAndSwap(false, true) {
		return
	}

	rb.mux.Lock()
	rb.notEmpty.Broadcast()
	rb.notFull.Broadcast()
	rb.mux.Unlock()
}
