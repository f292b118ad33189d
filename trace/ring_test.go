// ============================================================================
// TRANSITION RING CORRECTNESS VALIDATION SUITE
// ============================================================================
//
// Test categories:
//   - Constructor validation: power-of-2 sizing
//   - Basic operations: Push/Pop ordering and data integrity
//   - Capacity management: full ring drops and counts
//   - Wraparound: cursor arithmetic across many cycles
//   - Concurrency: lock-serialized producers against one consumer

package trace

import (
	"sync"
	"testing"

	"mpboot/spin"
	"mpboot/types"
)

// ============================================================================
// TEST UTILITIES AND HELPERS
// ============================================================================

func ev(tick uint64, from, to types.State) Event {
	return Event{Tick: tick, Unit: 1, From: from, To: to}
}

// ============================================================================
// CONSTRUCTOR
// ============================================================================

func TestNewRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, -4, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%d) did not panic", size)
				}
			}()
			New(size)
		}()
	}
}

// ============================================================================
// BASIC OPERATIONS
// ============================================================================

func TestPushPopOrder(t *testing.T) {
	r := New(8)
	cycle := []types.State{types.StateIdle, types.StateReady, types.StateBusy, types.StateFinished, types.StateIdle}
	for i := 0; i < len(cycle)-1; i++ {
		if !r.Push(ev(uint64(i), cycle[i], cycle[i+1])) {
			t.Fatalf("push %d failed", i)
		}
	}

	got := r.Drain(nil)
	if len(got) != 4 {
		t.Fatalf("drained %d events, want 4", len(got))
	}
	for i, e := range got {
		if e.From != cycle[i] || e.To != cycle[i+1] || e.Tick != uint64(i) {
			t.Fatalf("event %d = %+v", i, e)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("pop on empty ring succeeded")
	}
}

// ============================================================================
// CAPACITY MANAGEMENT
// ============================================================================

func TestFullRingDrops(t *testing.T) {
	r := New(4)
	for i := 0; i < 4; i++ {
		if !r.Push(ev(uint64(i), types.StateIdle, types.StateReady)) {
			t.Fatalf("push %d failed before capacity", i)
		}
	}
	if r.Push(ev(9, types.StateIdle, types.StateReady)) {
		t.Fatal("push into full ring succeeded")
	}
	if r.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", r.Dropped())
	}

	e, _ := r.Pop()
	if e.Tick != 0 {
		t.Fatalf("oldest event tick = %d", e.Tick)
	}
	if !r.Push(ev(10, types.StateIdle, types.StateReady)) {
		t.Fatal("push after pop failed")
	}
}

// ============================================================================
// WRAPAROUND
// ============================================================================

func TestWraparound(t *testing.T) {
	r := New(2)
	for i := uint64(0); i < 1000; i++ {
		if !r.Push(ev(i, types.StateBusy, types.StateFinished)) {
			t.Fatalf("push %d failed", i)
		}
		e, ok := r.Pop()
		if !ok || e.Tick != i {
			t.Fatalf("pop %d = %+v, %v", i, e, ok)
		}
	}
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func TestLockSerializedProducers(t *testing.T) {
	const perSide = 5000

	r := New(1 << 14)
	var (
		lock spin.Lock
		wg   sync.WaitGroup
	)

	produce := func(from, to types.State) {
		defer wg.Done()
		for i := 0; i < perSide; i++ {
			lock.Lock()
			r.Push(Event{From: from, To: to})
			lock.Unlock()
		}
	}

	wg.Add(2)
	go produce(types.StateIdle, types.StateReady)
	go produce(types.StateBusy, types.StateFinished)

	var total int
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	for {
		if _, ok := r.Pop(); ok {
			total++
			continue
		}
		select {
		case <-done:
			total += len(r.Drain(nil))
			if total != 2*perSide {
				t.Fatalf("consumed %d events, want %d", total, 2*perSide)
			}
			return
		default:
		}
	}
}

func BenchmarkPushPop(b *testing.B) {
	r := New(64)
	e := ev(1, types.StateIdle, types.StateReady)
	for i := 0; i < b.N; i++ {
		r.Push(e)
		r.Pop()
	}
}
