// SPDX-License-Identifier: MIT
package ring

import (
	"sync"
	"testing"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](8)

	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false, expected true", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() empty after %d pops, expected 5 values", i)
		}
		if v != i {
			t.Errorf("Pop() = %d, expected %d", v, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on drained queue = true, expected false")
	}
}

func TestPushFull(t *testing.T) {
	q := New[int](4)

	for i := 0; i < q.Cap(); i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false before capacity reached", i)
		}
	}
	if q.Push(99) {
		t.Error("Push on full queue = true, expected false")
	}
	if q.Len() != q.Cap() {
		t.Errorf("Len() = %d, expected %d", q.Len(), q.Cap())
	}
}

func TestCapacityRounding(t *testing.T) {
	tests := []struct {
		requested int
		expected  int
	}{
		{1, 1},
		{3, 4},
		{16, 16},
		{17, 32},
	}

	for _, tt := range tests {
		q := New[int](tt.requested)
		if q.Cap() != tt.expected {
			t.Errorf("New(%d).Cap() = %d, expected %d", tt.requested, q.Cap(), tt.expected)
		}
	}
}

func TestWraparound(t *testing.T) {
	q := New[int](4)

	// Cycle well past the capacity so head/tail wrap the mask repeatedly.
	for i := 0; i < 100; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false on non-full queue", i)
		}
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d,%v, expected %d,true", v, ok, i)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after balanced push/pop, expected 0", q.Len())
	}
}

func TestPopClearsSlot(t *testing.T) {
	q := New[*int](2)
	v := 42
	q.Push(&v)
	q.Pop()

	// The slot behind head must not retain the pointer.
	if q.buf[0] != nil {
		t.Error("popped slot still holds a pointer")
	}
}

// TestSPSCConservation hammers the queue from one producer and one
// consumer and checks that every pushed value arrives exactly once and
// in order.
func TestSPSCConservation(t *testing.T) {
	const count = 100000
	q := New[int](16)

	var wg sync.WaitGroup
	wg.Add(1)

	received := make([]int, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			if v, ok := q.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	for i := 0; i < count; {
		if q.Push(i) {
			i++
		}
	}
	wg.Wait()

	if len(received) != count {
		t.Fatalf("received %d values, expected %d", len(received), count)
	}
	for i, v := range received {
		if v != i {
			t.Fatalf("received[%d] = %d, expected %d (reordered or duplicated)", i, v, i)
		}
	}
}

func TestPushPopAllocs(t *testing.T) {
	q := New[int](64)

	allocs := testing.AllocsPerRun(100, func() {
		q.Push(1)
		q.Pop()
	})
	if allocs > 0 {
		t.Errorf("push/pop allocated %v times per run, expected 0", allocs)
	}
}

func BenchmarkPushPop(b *testing.B) {
	q := New[int](64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		q.Push(1)
		q.Pop()
	}
}
