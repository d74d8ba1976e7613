package util

import (
	"sort"
	"testing"
)

// TestNewExpirySchedule tests the creation of a new schedule
func TestNewExpirySchedule(t *testing.T) {
	s := NewExpirySchedule()

	if s == nil {
		t.Fatal("NewExpirySchedule() returned nil")
	}

	if s.Len() != 0 {
		t.Errorf("New schedule should be empty, but has length %d", s.Len())
	}
}

// TestSchedule tests adding deadlines
func TestSchedule(t *testing.T) {
	s := NewExpirySchedule()

	s.Schedule(1, 100)
	s.Schedule(2, 200)
	s.Schedule(3, 50)

	if s.Len() != 3 {
		t.Errorf("Schedule should have 3 entries, but has %d", s.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !s.Contains(key) {
			t.Errorf("Schedule should contain key %d", key)
		}
	}

	// the earliest deadline must surface first
	at, ok := s.NextDeadline()
	if !ok {
		t.Fatal("NextDeadline() should return a deadline")
	}
	if at != 50 {
		t.Errorf("Expected earliest deadline 50, got %d", at)
	}
}

// TestReschedule tests moving the deadline of an existing key
func TestReschedule(t *testing.T) {
	s := NewExpirySchedule()

	s.Schedule(1, 100)
	s.Schedule(2, 200)

	// push key 1 behind key 2
	s.Schedule(1, 300)

	if s.Len() != 2 {
		t.Errorf("Rescheduling must not grow the schedule, len=%d", s.Len())
	}

	key, ok := s.PopDue(250)
	if !ok || key != 2 {
		t.Errorf("Expected key 2 due at 250, got key=%d ok=%t", key, ok)
	}

	if _, ok := s.PopDue(250); ok {
		t.Error("Key 1 should no longer be due at 250")
	}
}

// TestCancel tests removing scheduled keys
func TestCancel(t *testing.T) {
	s := NewExpirySchedule()

	s.Schedule(1, 100)
	s.Schedule(2, 200)

	if !s.Cancel(1) {
		t.Error("Cancel should report true for a scheduled key")
	}
	if s.Cancel(1) {
		t.Error("Cancel should report false for an unscheduled key")
	}

	if s.Contains(1) {
		t.Error("Cancelled key should not be contained")
	}
	if s.Len() != 1 {
		t.Errorf("Schedule should have 1 entry, has %d", s.Len())
	}
}

// TestPopDue tests draining due entries in deadline order
func TestPopDue(t *testing.T) {
	s := NewExpirySchedule()

	deadlines := map[uint64]uint64{1: 30, 2: 10, 3: 20, 4: 100}
	for key, at := range deadlines {
		s.Schedule(key, at)
	}

	// nothing is due before the earliest deadline
	if _, ok := s.PopDue(5); ok {
		t.Error("Nothing should be due at 5")
	}

	var popped []uint64
	for {
		key, ok := s.PopDue(50)
		if !ok {
			break
		}
		popped = append(popped, key)
	}

	if len(popped) != 3 {
		t.Fatalf("Expected 3 due entries at 50, got %d", len(popped))
	}

	// due entries surface in deadline order: 2 (10), 3 (20), 1 (30)
	expected := []uint64{2, 3, 1}
	for i, key := range expected {
		if popped[i] != key {
			t.Errorf("Position %d: expected key %d, got %d", i, key, popped[i])
		}
	}

	if s.Len() != 1 {
		t.Errorf("One entry should remain, schedule has %d", s.Len())
	}
}

// TestScheduleOrdering adds many entries in random-ish order and verifies the
// drain order is sorted by deadline
func TestScheduleOrdering(t *testing.T) {
	s := NewExpirySchedule()

	const n = 500
	for i := 0; i < n; i++ {
		// scatter the deadlines
		s.Schedule(uint64(i), uint64((i*7919)%104729))
	}

	var drained []uint64
	for {
		at, ok := s.NextDeadline()
		if !ok {
			break
		}
		key, ok := s.PopDue(at)
		if !ok {
			t.Fatal("NextDeadline reported a deadline but PopDue found nothing due")
		}
		_ = key
		drained = append(drained, at)
	}

	if len(drained) != n {
		t.Fatalf("Expected %d entries, drained %d", n, len(drained))
	}
	if !sort.SliceIsSorted(drained, func(i, j int) bool { return drained[i] < drained[j] }) {
		t.Error("Entries did not drain in deadline order")
	}
}
