package mp

import (
	"fmt"

	"mpboot/debug"
	"mpboot/spin"
	"mpboot/types"
	"mpboot/wake"
)

// ============================================================================
// SECONDARY UNIT ENTRY
// ============================================================================

// Entry is the idle-loop entry handed to the platform trampoline. It runs on
// a freshly released secondary unit, registers it with the discovering
// coordinator and then never returns until the handle is shut down.
func Entry(h *Handle) {
	id, ok := h.platform.CurrentIdentity()
	if !ok {
		debug.DropError("ENTRY", fmt.Errorf("released unit has no identity"))
		return
	}
	if c := h.current.Load(); c != nil && c.Phase() == PhaseDiscovering {
		if !c.register(id, h.platform.BootHealth(id)) {
			debug.DropLimited("ENTRY", fmt.Errorf("unit %#x checked in after discovery closed", id))
		}
	}
	idleLoop(h, id)
}

// resolve returns the secondary record for id once the registry exists.
func (c *Coordinator) resolve(id types.Identity) *unit {
	switch c.Phase() {
	case PhaseReconfiguring, PhaseReady:
	default:
		return nil
	}
	n, ok := c.index.Get(id)
	if !ok || c.units[n].isBSP {
		return nil
	}
	return &c.units[n]
}

// idleLoop is the persistent wait → execute → Finished → wait cycle.
//
// The unit re-resolves its registry slot whenever the handle points at a
// different coordinator. While dispatch is hot it spins on the slot; once
// quiet it halts on the transport after each spin budget. Halting always
// returns within a quantum so the stop flag and slot are re-polled.
func idleLoop(h *Handle, id types.Identity) {
	var (
		owner *Coordinator
		self  *unit
		b     spin.Backoff
	)
	transport := h.platform.Transport()

	for !h.flags.Stopped() {
		if cur := h.current.Load(); cur != owner || self == nil {
			owner, self = cur, nil
			if cur != nil {
				self = cur.resolve(id)
			}
			if self == nil {
				transport.Halt(id)
				continue
			}
		}

		v := self.slot.Load()
		if v == 0 {
			h.flags.PollCooldown()
			if h.flags.Hot() {
				b.Pause()
			} else if b.Exhausted() {
				transport.Halt(id)
			}
			continue
		}
		b.Reset()
		owner.handleSignal(self, v)
	}
}

// handleSignal acts on the sentinel v observed in u's wake slot.
func (c *Coordinator) handleSignal(u *unit, v uint64) {
	gen, kind := wake.Decode(v)
	if gen != c.generation {
		if u.slot.Consume(v) {
			debug.DropLimited("WAKE", fmt.Errorf("unit %d dropped stale generation %d (current %d)", u.index, gen, c.generation))
		}
		return
	}

	switch kind {
	case kindTask:
		if u.slot.Consume(v) {
			c.execute(u)
		}
	case kindReconfigure:
		u.slot.Consume(v)
	default:
		if u.slot.Consume(v) {
			debug.DropLimited("WAKE", fmt.Errorf("unit %d dropped unknown request %#x", u.index, uint32(kind)))
		}
	}
}

// invoke runs proc, converting a panic into a logged failure so the unit
// still reaches Finished.
func (c *Coordinator) invoke(index int, proc Procedure, arg any) {
	defer func() {
		if r := recover(); r != nil {
			debug.DropLimited("TASK", fmt.Errorf("processor %d: procedure panicked: %v", index, r))
		}
	}()
	proc(arg)
}

// logStaleSlot reports a wake slot that was still armed when a new sentinel
// had to be written.
func (c *Coordinator) logStaleSlot(u *unit) {
	debug.DropLimited("WAKE", fmt.Errorf("processor %d slot still armed with %#x", u.index, u.slot.Load()))
}
