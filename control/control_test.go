// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: IDLE LOOP COORDINATION FLAGS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Control Flags
//
// Test Coverage:
//   - Unit tests: initial state, activity, cooldown, shutdown
//   - Concurrency: many pollers against one signaler
//   - Benchmarks: cooldown polling cost inside spin loops
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package control

import (
	"sync"
	"testing"
	"time"
)

// ============================================================================
// UNIT TESTS - INITIALIZATION
// ============================================================================

func TestControl_InitialState(t *testing.T) {
	f := New(time.Millisecond)

	if f.Hot() {
		t.Error("new flags should be cold")
	}
	if f.Stopped() {
		t.Error("new flags should be running")
	}
}

// ============================================================================
// UNIT TESTS - ACTIVITY AND COOLDOWN
// ============================================================================

func TestControl_SignalActivity(t *testing.T) {
	f := New(time.Hour)
	f.SignalActivity()

	if !f.Hot() {
		t.Fatal("SignalActivity should set hot")
	}
	f.PollCooldown()
	if !f.Hot() {
		t.Fatal("hot cleared before cooldown elapsed")
	}
}

func TestControl_CooldownClearsHot(t *testing.T) {
	f := New(time.Millisecond)
	f.SignalActivity()

	deadline := time.Now().Add(time.Second)
	for f.Hot() {
		if time.Now().After(deadline) {
			t.Fatal("hot flag never cooled down")
		}
		time.Sleep(500 * time.Microsecond)
		f.PollCooldown()
	}
}

func TestControl_ActivityExtendsHot(t *testing.T) {
	f := New(20 * time.Millisecond)
	f.SignalActivity()
	time.Sleep(10 * time.Millisecond)
	f.SignalActivity()
	time.Sleep(15 * time.Millisecond)
	f.PollCooldown()

	if !f.Hot() {
		t.Fatal("renewed activity should restart the cooldown window")
	}
}

// ============================================================================
// UNIT TESTS - SHUTDOWN
// ============================================================================

func TestControl_Shutdown(t *testing.T) {
	f := New(time.Millisecond)
	f.Shutdown()
	if !f.Stopped() {
		t.Fatal("Shutdown should set stop")
	}
	f.Shutdown()
	if !f.Stopped() {
		t.Fatal("repeated Shutdown must stay stopped")
	}
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func TestControl_ConcurrentPollers(t *testing.T) {
	const pollers = 16

	f := New(time.Microsecond)
	var wg sync.WaitGroup

	wg.Add(pollers)
	for i := 0; i < pollers; i++ {
		go func() {
			defer wg.Done()
			for !f.Stopped() {
				f.PollCooldown()
				_ = f.Hot()
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		f.SignalActivity()
	}
	f.Shutdown()
	wg.Wait()
}

// ============================================================================
// BENCHMARKS
// ============================================================================

func BenchmarkPollCooldown(b *testing.B) {
	f := New(time.Second)
	f.SignalActivity()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.PollCooldown()
	}
}
