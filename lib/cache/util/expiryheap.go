// Package util provides concurrency and bookkeeping primitives for cache
// engine implementations: a seeded key hash, an expiry schedule backed by a
// combined binary-heap/hash-map, an unbounded multi-producer single-consumer
// queue and a size histogram for metadata reporting.
package util

import (
	"container/heap"
)

// --------------------------------------------------------------------------
// Expiry Schedule (binary heap + hash map)
// --------------------------------------------------------------------------

// entry is one scheduled expiry with its position in the heap slice
type entry struct {
	key   uint64 // Hashed cache key
	at    uint64 // Expiry deadline (unix seconds)
	index int    // Index in the heap, maintained by the heap package
}

// innerHeap implements heap.Interface over the schedule's entries.
// It is deliberately unexported; all access goes through ExpirySchedule.
type innerHeap []*entry

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *innerHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // avoid memory leak
	e.index = -1
	*h = old[:n-1]
	return e
}

// ExpirySchedule tracks expiry deadlines for hashed cache keys. It combines
// a min-heap ordered by deadline with a hash map for O(1) key access, so the
// garbage collector can both pop the next due entry in O(log n) and cancel a
// specific key in O(log n) when the entry is overwritten or deleted.
//
// Concurrency: the schedule is not thread-safe. Each engine shard owns one
// schedule and accesses it from its GC goroutine only.
type ExpirySchedule struct {
	heap    innerHeap
	entries map[uint64]*entry
}

// NewExpirySchedule creates an empty expiry schedule
func NewExpirySchedule() *ExpirySchedule {
	return &ExpirySchedule{
		heap:    make(innerHeap, 0),
		entries: make(map[uint64]*entry),
	}
}

// Len returns the number of scheduled expiries
func (s *ExpirySchedule) Len() int { return len(s.heap) }

// Schedule adds an expiry deadline for a key, or moves the deadline if the
// key is already scheduled.
func (s *ExpirySchedule) Schedule(key, at uint64) {
	if e, ok := s.entries[key]; ok {
		e.at = at
		heap.Fix(&s.heap, e.index)
		return
	}

	e := &entry{key: key, at: at}
	heap.Push(&s.heap, e)
	s.entries[key] = e
}

// Cancel removes the scheduled expiry for a key. It reports whether the key
// was scheduled.
func (s *ExpirySchedule) Cancel(key uint64) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, e.index)
	delete(s.entries, key)
	return true
}

// Contains reports whether an expiry is scheduled for the key
func (s *ExpirySchedule) Contains(key uint64) bool {
	_, ok := s.entries[key]
	return ok
}

// PopDue removes and returns the key with the earliest deadline if that
// deadline is at or before now. The boolean return value indicates whether
// a due entry existed.
func (s *ExpirySchedule) PopDue(now uint64) (uint64, bool) {
	if len(s.heap) == 0 || s.heap[0].at > now {
		return 0, false
	}
	e := heap.Pop(&s.heap).(*entry)
	delete(s.entries, e.key)
	return e.key, true
}

// NextDeadline returns the earliest scheduled deadline. The boolean return
// value indicates whether the schedule is non-empty.
func (s *ExpirySchedule) NextDeadline() (uint64, bool) {
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].at, true
}
