// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🚀 DISPATCH ORCHESTRATION
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Run-On-All, Run-On-One & Completion Polling
//
// Description:
//   The primary assigns a procedure to one or every enabled secondary unit, wakes them, and
//   either block-polls for completion under a tick budget or returns at once and lets Poll
//   advance the call. Units abandoned by a timeout are acknowledged lazily, the next time the
//   primary looks at the registry, once they actually reach Finished.
//
// Execution modes:
//   - Broadcast: every selected unit is armed and signaled in one pass
//   - Single-threaded: one unit at a time in ascending registry order; each observed
//     completion starts the next waiting unit
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package mp

import (
	"fmt"

	"mpboot/debug"
	"mpboot/spin"
	"mpboot/timeout"
	"mpboot/types"
)

// broadcast is the in-flight run-on-all. Primary only.
type broadcast struct {
	active         bool
	proc           Procedure
	arg            any
	singleThreaded bool
	excludeSelf    bool
	selected       int
	running        int // selected units not yet acknowledged
	finished       int
	next           int // single-threaded cursor: first registry index not yet examined
	deadline       timeout.Deadline
	micros         uint64
	start          uint64
	done           *Event
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RUN ON ALL
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// RunOnAll runs proc(arg) on every enabled secondary unit and, unless
// excludeSelf, on the primary itself.
//
// With singleThreaded the units run one at a time in ascending registry
// order, otherwise all at once. A zero timeoutMicros waits forever.
//
// With done == nil the call block-polls and returns nil or a *TimeoutError.
// With done != nil it returns once the units are started; Poll advances the
// call and signals done.
func (c *Coordinator) RunOnAll(proc Procedure, arg any, excludeSelf, singleThreaded bool, timeoutMicros uint64, done *Event) error {
	if err := c.primaryOnly("RunOnAll"); err != nil {
		return err
	}
	if proc == nil {
		return fmt.Errorf("%w: nil procedure", ErrInvalidParameter)
	}
	c.reap()
	if c.bc.active {
		return fmt.Errorf("%w: run-on-all already in flight", ErrNotReady)
	}

	selected := 0
	for i := range c.units {
		u := &c.units[i]
		if u.isBSP {
			continue
		}
		switch st := u.load(); {
		case st == types.StateDisabled:
		case st != types.StateIdle || u.call.active || u.orphaned:
			return fmt.Errorf("%w: processor %d is %s", ErrNotReady, i, st)
		default:
			selected++
		}
	}
	if selected == 0 && excludeSelf {
		return ErrNotStarted
	}
	if done != nil && !done.arm() {
		return fmt.Errorf("%w: completion event already in use", ErrInvalidParameter)
	}

	c.bc = broadcast{
		active:         selected > 0,
		proc:           proc,
		arg:            arg,
		singleThreaded: singleThreaded,
		excludeSelf:    excludeSelf,
		selected:       selected,
		running:        selected,
		deadline:       timeout.Start(c.timer, timeoutMicros),
		micros:         timeoutMicros,
		start:          c.timer.Now(),
	}
	for i := range c.units {
		u := &c.units[i]
		u.waiting = !u.isBSP && u.load() == types.StateIdle
	}

	if selected > 0 {
		c.handle.flags.SignalActivity()
		if singleThreaded {
			c.startNext()
		} else {
			c.startAll()
		}
	}

	if !excludeSelf {
		c.invoke(c.bspIndex, proc, arg)
	}

	if !c.bc.active {
		return c.completeBroadcast(nil, done)
	}
	if done != nil {
		c.bc.done = done
		return nil
	}

	var b spin.Backoff
	for {
		if c.advanceBroadcast() {
			return c.completeBroadcast(nil, nil)
		}
		if c.bc.deadline.Expired(c.timer) {
			return c.completeBroadcast(c.abandonBroadcast(), nil)
		}
		b.Pause()
	}
}

// startAll arms every waiting unit, fires one transport broadcast and waits
// for each acknowledgement within the call's budget.
func (c *Coordinator) startAll() {
	ids := make([]types.Identity, 0, c.bc.selected)
	for i := range c.units {
		u := &c.units[i]
		if u.waiting && c.assign(u, c.bc.proc, c.bc.arg) {
			ids = append(ids, u.identity)
		}
	}
	c.transport.Broadcast(ids)

	expired := c.expiredFunc(&c.bc.deadline)
	for i := range c.units {
		if u := &c.units[i]; u.waiting {
			u.slot.WaitAcknowledged(expired)
		}
	}
}

// startNext starts the next waiting unit of a single-threaded run. It
// reports whether a unit was started.
func (c *Coordinator) startNext() bool {
	for c.bc.next < len(c.units) {
		u := &c.units[c.bc.next]
		c.bc.next++
		if !u.waiting || !c.assign(u, c.bc.proc, c.bc.arg) {
			continue
		}
		c.transport.Signal(u.identity)
		u.slot.WaitAcknowledged(c.expiredFunc(&c.bc.deadline))
		return true
	}
	return false
}

// advanceBroadcast acknowledges finished units and, single-threaded, starts
// the next one. It reports whether every selected unit is done.
func (c *Coordinator) advanceBroadcast() bool {
	progressed := false
	for i := range c.units {
		u := &c.units[i]
		if !u.waiting || !c.acknowledge(u) {
			continue
		}
		u.waiting = false
		c.bc.running--
		c.bc.finished++
		progressed = true
	}
	if progressed && c.bc.singleThreaded && c.bc.running > 0 {
		c.startNext()
	}
	return c.bc.running == 0
}

// abandonBroadcast stops waiting. Units already started are orphaned; units
// never started (single-threaded) return to the pool untouched.
func (c *Coordinator) abandonBroadcast() *TimeoutError {
	te := &TimeoutError{}
	for i := range c.units {
		u := &c.units[i]
		if !u.waiting {
			continue
		}
		u.waiting = false
		te.Unfinished = append(te.Unfinished, i)
		if u.load() != types.StateIdle {
			u.orphaned = true
		}
	}
	return te
}

// completeBroadcast closes the in-flight run-on-all, reports it and signals
// the completion event.
func (c *Coordinator) completeBroadcast(te *TimeoutError, done *Event) error {
	rec := DispatchRecord{
		Generation:     c.generation,
		Mode:           ModeAll,
		Target:         -1,
		SingleThreaded: c.bc.singleThreaded,
		ExcludeSelf:    c.bc.excludeSelf,
		TimeoutMicros:  c.bc.micros,
		Selected:       c.bc.selected,
		ElapsedTicks:   timeout.Elapsed(c.timer, c.bc.start, c.timer.Now()),
	}
	if done == nil {
		done = c.bc.done
	}
	c.bc = broadcast{}

	var err error
	if te != nil {
		rec.Unfinished = te.Unfinished
		err = te
		debug.DropError("DISPATCH", err)
	}
	rec.Err = err
	c.recordDispatch(rec)
	if done != nil {
		done.signal(err)
	}
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RUN ON ONE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// RunOnOne runs proc(arg) on the secondary unit at processor number index.
//
// The primary's own index, an out-of-range index and a Disabled unit are
// usage errors and dispatch nothing. With done == nil the call block-polls;
// on timeout the unit is left running and is acknowledged later, and it
// cannot be reassigned until it has reached Idle.
func (c *Coordinator) RunOnOne(proc Procedure, arg any, index int, timeoutMicros uint64, done *Event) error {
	if err := c.primaryOnly("RunOnOne"); err != nil {
		return err
	}
	if proc == nil {
		return fmt.Errorf("%w: nil procedure", ErrInvalidParameter)
	}
	u, err := c.secondary(index)
	if err != nil {
		return err
	}
	if u.load() == types.StateDisabled {
		return fmt.Errorf("%w: processor %d: %w", ErrInvalidParameter, index, ErrDisabled)
	}
	c.reap()
	if st := u.load(); st != types.StateIdle || u.waiting || u.call.active || u.orphaned {
		return fmt.Errorf("%w: processor %d is %s", ErrNotReady, index, st)
	}
	if done != nil && !done.arm() {
		return fmt.Errorf("%w: completion event already in use", ErrInvalidParameter)
	}

	u.call = call{
		active:   true,
		deadline: timeout.Start(c.timer, timeoutMicros),
		micros:   timeoutMicros,
		start:    c.timer.Now(),
	}
	c.handle.flags.SignalActivity()
	c.assign(u, proc, arg)
	c.transport.Signal(u.identity)
	u.slot.WaitAcknowledged(c.expiredFunc(&u.call.deadline))

	if done != nil {
		u.call.done = done
		return nil
	}

	var b spin.Backoff
	for {
		if c.acknowledge(u) {
			return c.completeCall(u, false)
		}
		if u.call.deadline.Expired(c.timer) {
			return c.completeCall(u, true)
		}
		b.Pause()
	}
}

// completeCall closes u's targeted dispatch.
func (c *Coordinator) completeCall(u *unit, timedOut bool) error {
	rec := DispatchRecord{
		Generation:    c.generation,
		Mode:          ModeOne,
		Target:        u.index,
		TimeoutMicros: u.call.micros,
		Selected:      1,
		ElapsedTicks:  timeout.Elapsed(c.timer, u.call.start, c.timer.Now()),
	}
	done := u.call.done
	u.call = call{}

	var err error
	if timedOut {
		u.orphaned = true
		rec.Unfinished = []int{u.index}
		err = &TimeoutError{Unfinished: rec.Unfinished}
		debug.DropError("DISPATCH", err)
	}
	rec.Err = err
	c.recordDispatch(rec)
	if done != nil {
		done.signal(err)
	}
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMPLETION POLLING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Poll advances every asynchronous dispatch: it acknowledges finished units,
// starts the next unit of a single-threaded run, signals completion events
// and expires calls whose budget is spent. It returns how many asynchronous
// dispatches are still in flight.
func (c *Coordinator) Poll() (int, error) {
	if err := c.primaryOnly("Poll"); err != nil {
		return 0, err
	}
	c.reap()

	pending := 0
	if c.bc.active && c.bc.done != nil {
		switch {
		case c.advanceBroadcast():
			c.completeBroadcast(nil, nil)
		case c.bc.deadline.Expired(c.timer):
			c.completeBroadcast(c.abandonBroadcast(), nil)
		default:
			pending++
		}
	}

	for i := range c.units {
		u := &c.units[i]
		if !u.call.active || u.call.done == nil {
			continue
		}
		switch {
		case c.acknowledge(u):
			c.completeCall(u, false)
		case u.call.deadline.Expired(c.timer):
			c.completeCall(u, true)
		default:
			pending++
		}
	}
	return pending, nil
}

// reap acknowledges orphaned units that have since finished.
func (c *Coordinator) reap() {
	for i := range c.units {
		u := &c.units[i]
		if u.orphaned && c.acknowledge(u) {
			u.orphaned = false
			debug.DropMessage("REAP", fmt.Sprintf("processor %d finished after its dispatch timed out", i))
		}
	}
}

// expiredFunc adapts d to the acknowledgement wait.
func (c *Coordinator) expiredFunc(d *timeout.Deadline) func() bool {
	return func() bool {
		return d.Expired(c.timer) || c.handle.Stopped()
	}
}

func (c *Coordinator) recordDispatch(rec DispatchRecord) {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordDispatch(rec); err != nil {
		debug.DropError("JOURNAL", err)
	}
}
