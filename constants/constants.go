// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go: Coordinator tunables
//
// Purpose:
//   - Registry capacity, spin budgets and wake sentinels shared by every package.
//   - Default discovery window and idle-loop timing for the simulated platform.
//
// Notes:
//   - Registry capacity matches the 64-entry affinity mask table in spin.
//   - Sentinel kinds live in the low word of a wake slot; the high word carries
//     the coordinator generation so stale signals can be told apart.
//
// ⚠️ No runtime logic here; all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ─────────────────────────────── Registry ───────────────────────────────────

const (
	// MaxUnits bounds the registry and the discovery broadcast.
	MaxUnits = 64

	// DefaultTraceDepth is the per-unit transition ring capacity (power of two).
	// Zero in Config disables tracing.
	DefaultTraceDepth = 64
)

// ──────────────────────────────── Spinning ──────────────────────────────────

const (
	// SpinBudget sets the number of failed polls before a spinner yields the
	// processor (primary) or halts on its transport (secondary).
	SpinBudget = 224

	// HaltQuantumMicros bounds a single halt so an idle unit always returns to
	// full execution to re-poll its wake slot and the stop flag.
	HaltQuantumMicros = 1000

	// HotWindowMicros keeps secondary units spinning without halting after
	// dispatch activity.
	HotWindowMicros = 10_000
)

// ─────────────────────────────── Discovery ──────────────────────────────────

const (
	// DefaultDiscoveryWindowMicros is how long the primary waits for units to
	// check in when not every possible slot has responded.
	DefaultDiscoveryWindowMicros = 100_000

	// MicrosPerSecond is used by the overflow-safe budget path.
	MicrosPerSecond = 1_000_000
)

// ──────────────────────────── Wake sentinels ────────────────────────────────

const (
	// WakeTask requests execution of the procedure stored in the unit record.
	WakeTask = 0x5A17

	// WakeReconfigure asks a unit to re-establish signaling with a successor
	// coordinator.
	WakeReconfigure = 0x5A2C
)
