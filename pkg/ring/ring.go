/*
Package ring provides a fixed-capacity single-producer single-consumer
queue built on atomic head/tail counters. It is the handoff primitive
between the real-time audio callback and the analysis goroutine.

Design Principles:
- Zero Allocations: Push and Pop touch only the pre-allocated slot array
- Non-Blocking: full/empty are reported as boolean results, never waits
- SPSC Only: exactly one pushing goroutine and one popping goroutine
- Real-Time Safe: no locks, no syscalls, no channel operations

Usage:

	q := ring.New[*Buffer](16)
	if !q.Push(buf) {
		// queue full, caller keeps ownership of buf
	}
	if buf, ok := q.Pop(); ok {
		// caller now owns buf
	}

----------------------------------------------------------------------

How the counters work:

	head and tail are free-running uint64 counters; they are never
	reduced modulo the capacity. The slot for position p is
	buf[p & mask], which is valid because the capacity is always a
	power of two.

	tail - head is the number of occupied slots. The producer owns
	tail and only reads head; the consumer owns head and only reads
	tail. Each side sees a conservative view of the other (a stale
	head can only make the queue look fuller than it is, a stale
	tail only emptier), so Push never overwrites an unread slot and
	Pop never reads an unwritten one.
*/
package ring

import (
	"sync/atomic"

	"beatbox/pkg/bitint"
)

// Queue is a bounded SPSC queue. The zero value is not usable; construct
// with New.
type Queue[T any] struct {
	buf  []T
	mask uint64

	// head is only advanced by the consumer, tail only by the producer.
	head atomic.Uint64
	tail atomic.Uint64
}

// New returns a queue holding at least capacity elements. The actual
// capacity is rounded up to the next power of two so slot indexing can
// use a mask instead of a modulo.
func New[T any](capacity int) *Queue[T] {
	n := bitint.NextPowerOfTwo(capacity)
	return &Queue[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Push appends v and returns true, or returns false when the queue is
// full. Producer side only.
//
// Performance Critical (Hot Path): called from the audio callback.
func (q *Queue[T]) Push(v T) bool {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head == uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return true
}

// Pop removes and returns the oldest element, or the zero value and
// false when the queue is empty. Consumer side only.
//
// Performance Critical (Hot Path): called from the audio callback when
// the callback recycles buffers.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return zero, false
	}
	v := q.buf[head&q.mask]
	// Clear the slot so pooled pointers do not pin freed objects.
	q.buf[head&q.mask] = zero
	q.head.Store(head + 1)
	return v, true
}

// Len reports the number of occupied slots. The value is approximate
// while the other side is active; it is exact when only the caller is
// touching the queue.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap reports the slot count (always a power of two).
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
