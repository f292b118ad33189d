package mp

import "sync/atomic"

// ============================================================================
// ASYNCHRONOUS COMPLETION
// ============================================================================

const (
	eventIdle uint32 = iota
	eventArmed
	eventSignaled
)

// Event is the asynchronous completion hook of RunOnAll and RunOnOne.
//
// Passing a non-nil Event makes the dispatch return as soon as the units are
// started. The primary's Poll signals the Event when every selected unit has
// finished or the call's timeout expired. Nothing blocks on an Event: callers
// check Signaled, or supply a notify function that Poll invokes on the
// primary unit.
//
// An Event serves one dispatch at a time; Reset makes a signaled Event
// reusable.
type Event struct {
	state  atomic.Uint32
	err    error
	notify func(error)
}

// NewEvent returns an Event that calls notify (if non-nil) when signaled.
func NewEvent(notify func(error)) *Event {
	return &Event{notify: notify}
}

// Signaled reports whether the dispatch has completed or timed out.
func (e *Event) Signaled() bool {
	return e.state.Load() == eventSignaled
}

// Err returns nil for a dispatch whose units all finished, a *TimeoutError
// otherwise. It is only meaningful once Signaled is true.
func (e *Event) Err() error {
	if !e.Signaled() {
		return nil
	}
	return e.err
}

// Finished reports whether the dispatch completed without timing out.
func (e *Event) Finished() bool {
	return e.Signaled() && e.err == nil
}

// Reset returns a signaled or never used Event to its initial state. It
// fails while the Event is bound to an in-flight dispatch.
func (e *Event) Reset() bool {
	for {
		s := e.state.Load()
		if s == eventArmed {
			return false
		}
		if e.state.CompareAndSwap(s, eventIdle) {
			return true
		}
	}
}

// arm binds the Event to a dispatch.
func (e *Event) arm() bool {
	return e.state.CompareAndSwap(eventIdle, eventArmed)
}

// disarm releases a binding taken by arm when the dispatch was rejected.
func (e *Event) disarm() {
	e.state.CompareAndSwap(eventArmed, eventIdle)
}

// signal publishes the outcome. err is written before the state store, so a
// reader that observes Signaled also observes err.
func (e *Event) signal(err error) {
	e.err = err
	e.state.Store(eventSignaled)
	if e.notify != nil {
		e.notify(err)
	}
}
