package mp

import (
	"sync/atomic"

	"mpboot/spin"
	"mpboot/timeout"
	"mpboot/trace"
	"mpboot/types"
	"mpboot/wake"
)

// ============================================================================
// UNIT RECORD
// ============================================================================

// Procedure is a run-to-completion task dispatched to a unit.
type Procedure func(arg any)

// call is the bookkeeping of one targeted dispatch. Primary only.
type call struct {
	active   bool
	deadline timeout.Deadline
	done     *Event
	micros   uint64
	start    uint64
}

// unit is one registry record. Identity, health and isBSP never change once
// the registry is published.
//
// Field ownership:
//   - state, proc, arg: written only while holding lock; state is also an
//     atomic word so the opposite side can poll it lock-free
//   - slot: armed by the primary, consumed by the owner
//   - waiting, orphaned, call: primary-only scratch, never touched by the owner
//
//go:align 64
type unit struct {
	lock  spin.Lock
	slot  wake.Slot
	state atomic.Uint32

	identity types.Identity
	health   types.Health
	index    int
	isBSP    bool

	proc Procedure
	arg  any

	waiting  bool // selected for the in-flight run-on-all
	orphaned bool // abandoned by a timed-out dispatch, awaits acknowledgement
	call     call

	trace *trace.Ring
}

// load reads the state lock-free.
//
//go:nosplit
//go:inline
func (u *unit) load() types.State {
	return types.State(u.state.Load())
}

// transition moves the unit to next and records the edge. Caller holds lock.
func (c *Coordinator) transition(u *unit, next types.State) {
	prev := u.load()
	u.state.Store(uint32(next))
	if u.trace != nil {
		u.trace.Push(trace.Event{
			Tick:       c.timer.Now(),
			Generation: c.generation,
			Unit:       uint32(u.index),
			From:       prev,
			To:         next,
		})
	}
}

// ============================================================================
// PRIMARY-SIDE TRANSITIONS
// ============================================================================

// assign performs Idle → Ready with the task installed and arms the wake slot.
// The transport is fired by the caller so a broadcast can batch signals.
func (c *Coordinator) assign(u *unit, proc Procedure, arg any) bool {
	u.lock.Lock()
	if u.load() != types.StateIdle {
		u.lock.Unlock()
		return false
	}
	u.proc, u.arg = proc, arg
	c.transition(u, types.StateReady)
	u.lock.Unlock()

	if !u.slot.Arm(wake.Sentinel(c.generation, kindTask)) {
		// Unreachable while the unit was Idle: its last sentinel was consumed
		// before it could leave Ready.
		c.logStaleSlot(u)
	}
	return true
}

// acknowledge performs Finished → Idle and reports whether it did.
func (c *Coordinator) acknowledge(u *unit) bool {
	if u.load() != types.StateFinished {
		return false
	}
	u.lock.Lock()
	if u.load() != types.StateFinished {
		u.lock.Unlock()
		return false
	}
	u.proc, u.arg = nil, nil
	c.transition(u, types.StateIdle)
	u.lock.Unlock()
	return true
}

// ============================================================================
// OWNER-SIDE TRANSITIONS
// ============================================================================

// execute runs the assigned task: Ready → Busy, proc(arg), Busy → Finished.
func (c *Coordinator) execute(u *unit) {
	u.lock.Lock()
	if u.load() != types.StateReady {
		u.lock.Unlock()
		return
	}
	proc, arg := u.proc, u.arg
	c.transition(u, types.StateBusy)
	u.lock.Unlock()

	c.invoke(u.index, proc, arg)

	u.lock.Lock()
	c.transition(u, types.StateFinished)
	u.lock.Unlock()
}
