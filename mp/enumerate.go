package mp

import (
	"fmt"
	"slices"
	"strconv"

	"mpboot/constants"
	"mpboot/debug"
	"mpboot/idindex"
	"mpboot/spin"
	"mpboot/timeout"
	"mpboot/trace"
	"mpboot/types"
	"mpboot/wake"
)

// ============================================================================
// ENUMERATION
// ============================================================================

// Initialize discovers every responding unit and publishes the registry.
//
// The primary stages its own record, releases the secondary units through
// the platform trampoline and waits until every possible slot has checked in
// or the discovery window closes. Responders are then sorted ascending by
// identity. Zero responders is a valid single-unit system.
//
// Initialize on a ready coordinator is a no-op. A failed enumeration leaves
// no registry behind and cannot be retried on the same coordinator.
func (c *Coordinator) Initialize() error {
	if c.retired.Load() {
		return ErrRetired
	}
	switch c.Phase() {
	case PhaseReady:
		return nil
	case PhaseFailed:
		return fmt.Errorf("%w: previous attempt failed", ErrEnumeration)
	case PhaseReconfiguring:
		return fmt.Errorf("%w: coordinator %s", ErrNotReady, c.Phase())
	}
	if c.handle.Coordinator() != nil {
		return fmt.Errorf("%w: handle already released", ErrEnumeration)
	}

	self, ok := c.platform.CurrentIdentity()
	if !ok {
		return c.fail(fmt.Errorf("%w: primary identity unavailable", ErrEnumeration))
	}
	limit := c.platform.MaxUnits()
	if limit < 1 || limit > constants.MaxUnits {
		return c.fail(fmt.Errorf("%w: platform reports %d unit slots", ErrEnumeration, limit))
	}

	c.pending = make([]staged, 0, limit)
	c.pending = append(c.pending, staged{
		identity: self,
		health:   c.platform.BootHealth(self),
		isBSP:    true,
	})

	c.handle.current.Store(c)
	if err := c.platform.Release(c.handle, Entry); err != nil {
		return c.fail(fmt.Errorf("%w: release: %w", ErrEnumeration, err))
	}

	c.discover(uint32(limit - 1))

	c.enumLock.Lock()
	c.closed = true
	records := c.pending
	c.pending = nil
	c.enumLock.Unlock()

	if err := c.build(records, self); err != nil {
		return c.fail(err)
	}
	c.phase.Store(uint32(PhaseReady))

	debug.DropMessage("ENUM", "generation "+strconv.FormatUint(uint64(c.generation), 10)+": "+
		strconv.Itoa(len(c.units))+" units, primary at "+strconv.Itoa(c.bspIndex))
	c.recordEnumeration()
	return nil
}

// discover polls the responder count until every expected secondary unit has
// checked in or the window closes.
func (c *Coordinator) discover(expected uint32) {
	window := timeout.Start(c.timer, c.cfg.DiscoveryWindowMicros)
	var b spin.Backoff
	for c.responded.Load() < expected {
		if window.Expired(c.timer) {
			return
		}
		b.Pause()
	}
}

// register stages a secondary unit's self-registration. Responders arriving
// after the window closed, or beyond the platform's slot count, are refused.
func (c *Coordinator) register(id types.Identity, health types.Health) bool {
	c.enumLock.Lock()
	defer c.enumLock.Unlock()
	if c.closed || len(c.pending) == cap(c.pending) {
		return false
	}
	c.pending = append(c.pending, staged{identity: id, health: health})
	c.responded.Add(1)
	return true
}

// fail marks the coordinator failed. Units that already entered their idle
// loops find no registry slot and keep halting.
func (c *Coordinator) fail(err error) error {
	c.enumLock.Lock()
	c.closed = true
	c.pending = nil
	c.enumLock.Unlock()
	c.phase.Store(uint32(PhaseFailed))
	debug.DropError("ENUM", err)
	return err
}

// build sorts the staged records and allocates the registry. Nothing is
// published on error.
func (c *Coordinator) build(records []staged, self types.Identity) error {
	slices.SortFunc(records, func(a, b staged) int {
		switch {
		case a.identity < b.identity:
			return -1
		case a.identity > b.identity:
			return 1
		}
		return 0
	})

	index := idindex.New(len(records))
	for i := range records {
		if _, ok := index.Put(records[i].identity, uint32(i)); !ok {
			return fmt.Errorf("%w: duplicate identity %#x", ErrEnumeration, records[i].identity)
		}
	}
	bsp, ok := index.Get(self)
	if !ok {
		return fmt.Errorf("%w: primary %#x missing from registry", ErrEnumeration, self)
	}

	units := make([]unit, len(records))
	ids := make([]types.Identity, 0, len(records)-1)
	for i, r := range records {
		u := &units[i]
		u.identity = r.identity
		u.health = r.health
		u.index = i
		u.isBSP = i == int(bsp)
		if c.cfg.TraceDepth > 0 {
			u.trace = trace.New(c.cfg.TraceDepth)
		}
		if !u.isBSP {
			ids = append(ids, r.identity)
		}
	}

	c.units = units
	c.index = index
	c.apIDs = ids
	c.bspIndex = int(bsp)
	return nil
}

// ============================================================================
// RECONFIGURATION
// ============================================================================

// Reconfigure replaces c with a successor coordinator for a later boot phase.
//
// The successor keeps every unit's identity, health, registry order and
// Disabled setting; self-test is not repeated. It gets fresh locks, wake
// slots and traces and the next generation number. Each secondary unit is
// sent a reconfigure wake and the primary waits, within the discovery
// window, for it to re-resolve its slot and acknowledge. c is retired.
//
// Every unit must be Idle or Disabled: in-flight work returns ErrNotReady.
func (c *Coordinator) Reconfigure() (*Coordinator, error) {
	if err := c.primaryOnly("Reconfigure"); err != nil {
		return nil, err
	}
	c.reap()
	if c.bc.active {
		return nil, fmt.Errorf("%w: run-on-all in flight", ErrNotReady)
	}
	for i := range c.units {
		u := &c.units[i]
		if u.isBSP {
			continue
		}
		if st := u.load(); u.call.active || u.orphaned || (st != types.StateIdle && st != types.StateDisabled) {
			return nil, fmt.Errorf("%w: processor %d is %s", ErrNotReady, i, st)
		}
	}

	next := newCoordinator(c.handle, c.cfg, c.generation+1)
	next.adopt(c)
	next.phase.Store(uint32(PhaseReconfiguring))

	c.retired.Store(true)
	c.handle.current.Store(next)

	sentinel := wake.Sentinel(next.generation, kindReconfigure)
	for i := range next.units {
		if u := &next.units[i]; !u.isBSP {
			u.slot.Arm(sentinel)
		}
	}
	c.handle.flags.SignalActivity()
	next.transport.Broadcast(next.apIDs)

	window := timeout.Start(next.timer, next.cfg.DiscoveryWindowMicros)
	expired := func() bool { return window.Expired(next.timer) || next.handle.Stopped() }
	silent := 0
	for i := range next.units {
		u := &next.units[i]
		if u.isBSP {
			continue
		}
		if !u.slot.WaitAcknowledged(expired) {
			u.slot.Clear()
			silent++
			debug.DropError("RECONF", fmt.Errorf("processor %d (identity %#x) did not acknowledge generation %d",
				i, u.identity, next.generation))
		}
	}
	next.phase.Store(uint32(PhaseReady))

	debug.DropMessage("RECONF", "generation "+strconv.FormatUint(uint64(next.generation), 10)+": "+
		strconv.Itoa(len(next.apIDs)-silent)+"/"+strconv.Itoa(len(next.apIDs))+" units re-established")
	next.recordEnumeration()
	return next, nil
}

// adopt copies the registry shape of prev: identities, health, order,
// primary and Disabled settings.
func (c *Coordinator) adopt(prev *Coordinator) {
	c.units = make([]unit, len(prev.units))
	for i := range prev.units {
		p, u := &prev.units[i], &c.units[i]
		u.identity = p.identity
		u.health = p.health
		u.index = p.index
		u.isBSP = p.isBSP
		if p.load() == types.StateDisabled {
			u.state.Store(uint32(types.StateDisabled))
		}
		if c.cfg.TraceDepth > 0 {
			u.trace = trace.New(c.cfg.TraceDepth)
		}
	}
	c.index = prev.index
	c.apIDs = prev.apIDs
	c.bspIndex = prev.bspIndex
	c.closed = true
}

func (c *Coordinator) recordEnumeration() {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordEnumeration(c.generation, c.snapshot()); err != nil {
		debug.DropError("JOURNAL", err)
	}
}
