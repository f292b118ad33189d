package mp

import (
	"mpboot/constants"
	"mpboot/timeout"
	"mpboot/types"
	"mpboot/wake"
)

// ============================================================================
// COLLABORATORS
// ============================================================================

// EntryFunc is the idle-loop entry a released secondary unit calls exactly
// once, with the only reference it is given: the coordinator handle.
type EntryFunc func(h *Handle)

// Platform is everything the coordinator consumes from the machine.
type Platform interface {
	// MaxUnits is the number of unit slots that may respond to discovery,
	// the primary included.
	MaxUnits() int
	// CurrentIdentity returns the hardware identity of the calling unit.
	CurrentIdentity() (types.Identity, bool)
	// BootHealth returns the self-test result the unit captured before it
	// reached the entry trampoline. It never re-runs the test.
	BootHealth(id types.Identity) types.Health
	// Transport delivers wake signals.
	Transport() wake.Transport
	// Timer is the free-running tick source used for every timeout.
	Timer() timeout.Timer
	// Release starts every secondary unit through the entry trampoline. It
	// is called once per handle.
	Release(h *Handle, entry EntryFunc) error
}

// Recorder receives enumeration and dispatch outcomes. It is called on the
// primary unit only, outside any unit lock.
type Recorder interface {
	RecordEnumeration(generation uint32, units []UnitInfo) error
	RecordDispatch(rec DispatchRecord) error
}

// ============================================================================
// CONFIGURATION AND REPORTING TYPES
// ============================================================================

// Config tunes a coordinator.
type Config struct {
	// DiscoveryWindowMicros bounds how long Initialize waits for secondary
	// units to check in and how long Reconfigure waits for acknowledgements.
	// Zero selects the default window.
	DiscoveryWindowMicros uint64
	// TraceDepth is the per-unit transition ring capacity, a power of two.
	// Zero disables tracing.
	TraceDepth int
	// Recorder is optional.
	Recorder Recorder
}

// DefaultConfig returns the default window and trace depth, no recorder.
func DefaultConfig() Config {
	return Config{
		DiscoveryWindowMicros: constants.DefaultDiscoveryWindowMicros,
		TraceDepth:            constants.DefaultTraceDepth,
	}
}

// UnitInfo is the externally visible view of one registry record.
type UnitInfo struct {
	Index    int
	Identity types.Identity
	IsBSP    bool
	Healthy  bool
	Health   types.Health
	Enabled  bool
	State    types.State
}

// Dispatch modes reported in DispatchRecord.
const (
	ModeAll = "all"
	ModeOne = "one"
)

// DispatchRecord summarizes one completed, failed or timed-out dispatch.
type DispatchRecord struct {
	Generation     uint32
	Mode           string
	Target         int // processor number for ModeOne, -1 for ModeAll
	SingleThreaded bool
	ExcludeSelf    bool
	TimeoutMicros  uint64
	Selected       int
	ElapsedTicks   uint64
	Unfinished     []int
	Err            error
}
