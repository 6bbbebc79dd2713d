// Package queue implements the unbounded MPMC FIFOs shared by the scheduler:
// the ready queue of task handles, the new-tasks queue of descriptions, and
// the terminated queue of ids. All three are instances of the same generic
// Queue type.
package queue

import (
	"sync"
	"sync/atomic"
)

// node is a single link in the FIFO's backing list.
type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is a linearizable multi-producer/multi-consumer FIFO with O(1)
// Enqueue/TryDequeue/Count/Empty. A single mutex guards the head/tail
// pointers; throughput here is bounded by lock hold time, which is a single
// pointer swing, so contention is the same order of magnitude as a
// lock-free Michael-Scott queue for the worker-pool sizes this scheduler
// targets. enqueued/dequeued are kept as separate atomic counters (rather
// than a single length field protected by the same lock) so Count can be
// read without contending with producers/consumers (Empty takes the lock
// and inspects the head pointer), mirroring the
// "advisory" counters/spin-stats the spec calls for.
type Queue[T any] struct {
	description string

	mu   sync.Mutex
	head *node[T]
	tail *node[T]

	enqueued     atomic.Int64
	dequeued     atomic.Int64
	dequeueSpins atomic.Int64
}

// New creates an empty queue. description is used only for diagnostics
// (logging, debug dumps) — it has no effect on behavior.
func New[T any](description string) *Queue[T] {
	return &Queue[T]{description: description}
}

// Description returns the queue's diagnostic name.
func (q *Queue[T]) Description() string { return q.description }

// Enqueue appends v to the tail of the queue and is safe for concurrent use
// by any number of producers.
func (q *Queue[T]) Enqueue(v T) {
	n := &node[T]{value: v}

	q.mu.Lock()
	if q.tail == nil {
		q.head = n
		q.tail = n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.mu.Unlock()

	q.enqueued.Add(1)
}

// TryDequeue removes and returns the head of the queue. It returns
// (zero, false) without blocking if the queue is empty.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	if q.head == nil {
		q.mu.Unlock()
		q.dequeueSpins.Add(1)
		var zero T
		return zero, false
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.mu.Unlock()

	q.dequeued.Add(1)
	return n.value, true
}

// Empty reports whether the queue currently holds no elements. The result
// is advisory under concurrent mutation, as spec'd.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == nil
}

// Count returns the number of elements currently enqueued. Like Empty, this
// is a point-in-time snapshot and may be stale the instant it's read under
// concurrent producers/consumers.
func (q *Queue[T]) Count() int64 {
	return q.enqueued.Load() - q.dequeued.Load()
}

// Stats returns the lifetime enqueue/dequeue counts and the number of
// TryDequeue calls that found the queue empty (dequeue "spins"), exposed
// the way the original implementation logs FIFO statistics at shutdown.
func (q *Queue[T]) Stats() (enqueued, dequeued, dequeueSpins int64) {
	return q.enqueued.Load(), q.dequeued.Load(), q.dequeueSpins.Load()
}
