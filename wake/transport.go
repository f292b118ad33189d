package wake

import (
	"runtime"
	"time"

	"mpboot/spin"
	"mpboot/types"
)

// Transport is the external mechanism that interrupts a unit. Delivery is
// addressed, fire-and-forget and at-least-once; a unit must treat the wake
// slot, not the signal, as the source of truth.
type Transport interface {
	// Signal notifies one unit.
	Signal(id types.Identity)
	// Broadcast notifies every unit in ids.
	Broadcast(ids []types.Identity)
	// Halt is the unit-side low-power wait: it returns when a signal for id
	// arrives or after a bounded quantum, whichever is first.
	Halt(id types.Identity)
}

// ============================================================================
// DOORBELL TRANSPORT
// ============================================================================

// bell is one unit's interrupt line. Only the owning unit halts on it.
type bell struct {
	ring  chan struct{}
	timer *time.Timer
}

// Doorbell models an interrupt controller: each identity owns a coalescing
// one-deep doorbell; ringing an already pending doorbell is a no-op.
type Doorbell struct {
	bells   map[types.Identity]*bell
	quantum time.Duration
}

// NewDoorbell wires a doorbell for every identity. The identity set is fixed
// for the lifetime of the transport.
func NewDoorbell(ids []types.Identity, quantum time.Duration) *Doorbell {
	d := &Doorbell{
		bells:   make(map[types.Identity]*bell, len(ids)),
		quantum: quantum,
	}
	for _, id := range ids {
		t := time.NewTimer(quantum)
		t.Stop()
		d.bells[id] = &bell{ring: make(chan struct{}, 1), timer: t}
	}
	return d
}

// Signal rings id's doorbell. Unknown identities are ignored.
func (d *Doorbell) Signal(id types.Identity) {
	b, ok := d.bells[id]
	if !ok {
		return
	}
	select {
	case b.ring <- struct{}{}:
	default: // already pending
	}
}

// Broadcast rings every listed doorbell.
func (d *Doorbell) Broadcast(ids []types.Identity) {
	for _, id := range ids {
		d.Signal(id)
	}
}

// Halt waits for id's doorbell or one quantum.
func (d *Doorbell) Halt(id types.Identity) {
	b, ok := d.bells[id]
	if !ok {
		time.Sleep(d.quantum)
		return
	}
	b.timer.Reset(d.quantum)
	select {
	case <-b.ring:
	case <-b.timer.C:
	}
	b.timer.Stop()
}

// ============================================================================
// POLLED TRANSPORT
// ============================================================================

// Polled models platforms where the wake slot itself is the only signal:
// Signal does nothing and Halt is a short relax burst.
type Polled struct{}

// Signal implements Transport; the armed slot is the signal.
func (Polled) Signal(types.Identity) {}

// Broadcast implements Transport.
func (Polled) Broadcast([]types.Identity) {}

// Halt relaxes for a short burst and yields.
func (Polled) Halt(types.Identity) {
	for i := 0; i < 64; i++ {
		spin.Relax()
	}
	runtime.Gosched()
}
