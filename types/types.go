package types

// ============================================================================
// PROCESSING UNIT IDENTITY AND LIFECYCLE TYPES
// ============================================================================

// Identity is the platform-assigned hardware identifier of a processing unit
// (an APIC or MPIDR style value). It is opaque to the coordinator apart from
// being comparable and totally ordered; the canonical registry order is
// ascending Identity.
type Identity uint32

// Health is the boot self-test result captured for a unit during
// enumeration. Zero means the self-test passed; any other value is the
// failure signature reported by the unit.
type Health uint32

// Passed reports whether the self-test completed without a failure signature.
//
//go:nosplit
//go:inline
func (h Health) Passed() bool {
	return h == 0
}

// ============================================================================
// PER-UNIT STATE MACHINE
// ============================================================================

// State is the dispatch lifecycle state of a secondary unit.
//
// Normal cycle:   Idle → Ready → Busy → Finished → Idle
// Administrative: Idle ↔ Disabled
type State uint32

const (
	// StateIdle accepts a new task.
	StateIdle State = iota
	// StateReady holds an assigned task the unit has not started yet.
	StateReady
	// StateBusy means the unit is executing its assigned task.
	StateBusy
	// StateFinished means the task returned and awaits the primary's acknowledgement.
	StateFinished
	// StateDisabled excludes the unit from every dispatch.
	StateDisabled
)

var stateNames = [...]string{
	StateIdle:     "idle",
	StateReady:    "ready",
	StateBusy:     "busy",
	StateFinished: "finished",
	StateDisabled: "disabled",
}

// String returns the lower-case state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Successor returns the next state of the normal task cycle. Disabled has no
// successor and maps to itself.
func (s State) Successor() State {
	switch s {
	case StateIdle:
		return StateReady
	case StateReady:
		return StateBusy
	case StateBusy:
		return StateFinished
	case StateFinished:
		return StateIdle
	}
	return s
}
