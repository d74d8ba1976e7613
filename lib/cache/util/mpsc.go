package util

import (
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Multi-Producer Single-Consumer Queue
// --------------------------------------------------------------------------

// stackNode is a single element of the intrusive producer stack
type stackNode[T any] struct {
	value T
	next  *stackNode[T]
}

// MPSC is an unbounded multi-producer single-consumer queue.
//
// Producers push onto a lock-free Treiber stack with a single CAS; a
// dedicated consumer goroutine periodically takes the whole stack with one
// atomic swap, reverses it to restore per-producer FIFO order and forwards
// the values to the output channel. Under concurrent pushes the relative
// order between producers is determined by which CAS lands first.
//
// Guarantees:
//   - Push is safe for any number of concurrent goroutines
//   - every value pushed before Close is delivered exactly once
//   - after Close, Push returns false and the output channel is closed
//     once the backlog is drained
type MPSC[T any] struct {
	head     atomic.Pointer[stackNode[T]]
	out      chan T
	closed   atomic.Bool
	consumer sync.WaitGroup

	// wakeup for the consumer when the stack transitions from empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a new queue and starts its consumer goroutine
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds a value to the queue. It returns false if the queue is closed.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &stackNode[T]{value: value}
	for {
		head := q.head.Load()
		n.next = head
		if q.head.CompareAndSwap(head, n) {
			break
		}
	}

	// wake the consumer in case it is parked on an empty stack; taking the
	// lock orders the push before the signal, so no wakeup is ever lost
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
	return true
}

// consume drains the producer stack in batches and forwards the values
func (q *MPSC[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		batch := q.head.Swap(nil)

		if batch == nil {
			if q.closed.Load() {
				// closed and nothing left to drain
				return
			}

			// park until a producer signals or the queue is closed
			q.mu.Lock()
			for q.head.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
			continue
		}

		// the stack yields newest-first, reverse to restore push order
		var ordered *stackNode[T]
		for batch != nil {
			next := batch.next
			batch.next = ordered
			ordered = batch
			batch = next
		}

		for ordered != nil {
			q.out <- ordered.value
			ordered = ordered.next
		}
	}
}

// Recv returns a receive-only channel for consuming from the queue.
// This allows the queue to be used with the '<-' operator in select
// statements. The channel is closed after Close once all values have been
// delivered.
func (q *MPSC[T]) Recv() <-chan T {
	return q.out
}

// Close closes the queue, preventing further writes. Values already pushed
// will still be delivered to the consumer.
func (q *MPSC[T]) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}

	// wake the consumer so it can observe the closed flag
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
