// ============================================================================
// WAKE-SIGNAL PRIMITIVE VALIDATION SUITE
// ============================================================================
//
// Test categories:
//   - Sentinel packing round trip
//   - Arm / Consume compare-and-swap discipline and stale values
//   - Acknowledgement rendezvous, bounded and unbounded
//   - Doorbell coalescing and halt quantum
//   - Polled transport as a pure memory flag

package wake

import (
	"sync/atomic"
	"testing"
	"time"

	"mpboot/types"
)

// ============================================================================
// SENTINELS
// ============================================================================

func TestSentinelRoundTrip(t *testing.T) {
	v := Sentinel(7, 0x5A17)
	gen, kind := Decode(v)
	if gen != 7 || kind != 0x5A17 {
		t.Fatalf("Decode(%#x) = (%d, %#x)", v, gen, kind)
	}
	if Sentinel(0, 1) == 0 {
		t.Fatal("sentinel with non-zero kind must not be zero")
	}
}

// ============================================================================
// SLOT
// ============================================================================

func TestArmOnlyWhenClear(t *testing.T) {
	var s Slot
	if !s.Arm(Sentinel(1, 1)) {
		t.Fatal("Arm on clear slot failed")
	}
	if s.Arm(Sentinel(1, 2)) {
		t.Fatal("Arm overwrote an unacknowledged sentinel")
	}
	if !s.Pending() {
		t.Fatal("armed slot not pending")
	}
}

func TestConsumeRejectsStale(t *testing.T) {
	var s Slot
	cur := Sentinel(2, 1)
	s.Arm(cur)

	if s.Consume(Sentinel(1, 1)) {
		t.Fatal("consumed a stale sentinel")
	}
	if s.Consume(0) {
		t.Fatal("consumed zero")
	}
	if !s.Consume(cur) {
		t.Fatal("failed to consume current sentinel")
	}
	if s.Pending() {
		t.Fatal("slot still pending after consume")
	}
}

func TestWaitAcknowledged(t *testing.T) {
	var s Slot
	v := Sentinel(1, 1)
	s.Arm(v)

	go func() {
		time.Sleep(2 * time.Millisecond)
		s.Consume(v)
	}()

	if !s.WaitAcknowledged(nil) {
		t.Fatal("acknowledgement not observed")
	}
}

func TestWaitAcknowledgedBounded(t *testing.T) {
	var s Slot
	s.Arm(Sentinel(1, 1))

	var polls atomic.Int32
	ok := s.WaitAcknowledged(func() bool { return polls.Add(1) > 10 })
	if ok {
		t.Fatal("reported acknowledgement that never happened")
	}
	if !s.Pending() {
		t.Fatal("bounded wait must not clear the slot")
	}
}

// ============================================================================
// DOORBELL
// ============================================================================

func TestDoorbellWakesHalt(t *testing.T) {
	id := types.Identity(4)
	d := NewDoorbell([]types.Identity{id}, time.Second)

	done := make(chan struct{})
	go func() {
		d.Halt(id)
		close(done)
	}()

	time.Sleep(time.Millisecond)
	d.Signal(id)

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("halt did not return on signal")
	}
}

func TestDoorbellCoalesces(t *testing.T) {
	id := types.Identity(1)
	d := NewDoorbell([]types.Identity{id}, 5*time.Millisecond)

	d.Broadcast([]types.Identity{id, id, id, 99})

	start := time.Now()
	d.Halt(id) // pending ring: immediate
	if time.Since(start) > 3*time.Millisecond {
		t.Fatal("pending doorbell did not satisfy halt immediately")
	}

	start = time.Now()
	d.Halt(id) // coalesced: nothing left, waits one quantum
	if time.Since(start) < 4*time.Millisecond {
		t.Fatal("coalesced rings were delivered more than once")
	}
}

func TestDoorbellUnknownIdentity(t *testing.T) {
	d := NewDoorbell(nil, time.Millisecond)
	d.Signal(3)
	d.Halt(3)
}

// ============================================================================
// POLLED
// ============================================================================

func TestPolledIsInert(t *testing.T) {
	var p Polled
	p.Signal(1)
	p.Broadcast([]types.Identity{1, 2})
	p.Halt(1)
}

func BenchmarkArmConsume(b *testing.B) {
	var s Slot
	v := Sentinel(1, 1)
	for i := 0; i < b.N; i++ {
		s.Arm(v)
		s.Consume(v)
	}
}
