// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚙️ MULTIPROCESSOR COORDINATOR
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Registry, Handle & Query Surface
//
// Description:
//   A Coordinator owns the unit registry of one boot phase. It is reached by secondary units
//   only through a Handle, the single opaque reference handed to the entry trampoline. A later
//   boot phase replaces the coordinator behind the handle (Reconfigure); idle loops notice the
//   change and re-resolve their registry slot.
//
// Lifecycle:
//   Discovering → Ready                  (Initialize)
//   Reconfiguring → Ready                (successor built by Reconfigure)
//   any → retired                        (successor published or handle shut down)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package mp

import (
	"fmt"
	"sync/atomic"
	"time"

	"mpboot/constants"
	"mpboot/control"
	"mpboot/debug"
	"mpboot/idindex"
	"mpboot/spin"
	"mpboot/timeout"
	"mpboot/trace"
	"mpboot/types"
	"mpboot/wake"
)

const (
	kindTask        = wake.Kind(constants.WakeTask)
	kindReconfigure = wake.Kind(constants.WakeReconfigure)
)

// Phase is the coordinator's position in the boot flow.
type Phase uint32

const (
	PhaseDiscovering Phase = iota
	PhaseReconfiguring
	PhaseReady
	PhaseFailed
)

var phaseNames = [...]string{"discovering", "reconfiguring", "ready", "failed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HANDLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Handle is the typed reference a secondary unit receives at entry. It always
// points at the current coordinator of the boot flow.
type Handle struct {
	current  atomic.Pointer[Coordinator]
	flags    *control.Flags
	platform Platform
}

// Coordinator returns the current coordinator.
func (h *Handle) Coordinator() *Coordinator {
	return h.current.Load()
}

// Shutdown retires the current coordinator and makes every idle loop return.
// Units halted on the transport are woken so they observe the stop flag.
func (h *Handle) Shutdown() {
	h.flags.Shutdown()
	if c := h.current.Load(); c != nil {
		c.retired.Store(true)
		if ids := c.secondaryIdentities(); len(ids) > 0 {
			h.platform.Transport().Broadcast(ids)
		}
	}
}

// Stopped reports whether Shutdown was called.
func (h *Handle) Stopped() bool {
	return h.flags.Stopped()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COORDINATOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// staged is a self-registration collected during discovery.
type staged struct {
	identity types.Identity
	health   types.Health
	isBSP    bool
}

// Coordinator is the registry and dispatch engine of one boot phase.
type Coordinator struct {
	platform   Platform
	timer      timeout.Timer
	transport  wake.Transport
	handle     *Handle
	cfg        Config
	generation uint32

	phase   atomic.Uint32
	retired atomic.Bool

	// Discovery state, guarded by enumLock.
	enumLock  spin.Lock
	closed    bool
	pending   []staged
	responded atomic.Uint32

	// Registry, immutable in shape once phase leaves Discovering.
	units    []unit
	index    idindex.Index
	apIDs    []types.Identity
	bspIndex int

	// In-flight run-on-all. Primary only.
	bc broadcast
}

// New creates an uninitialized coordinator on p and the handle its units
// will be released with.
func New(p Platform, cfg Config) *Coordinator {
	if cfg.DiscoveryWindowMicros == 0 {
		cfg.DiscoveryWindowMicros = constants.DefaultDiscoveryWindowMicros
	}
	h := &Handle{
		flags:    control.New(constants.HotWindowMicros * time.Microsecond),
		platform: p,
	}
	return newCoordinator(h, cfg, 1)
}

func newCoordinator(h *Handle, cfg Config, generation uint32) *Coordinator {
	return &Coordinator{
		platform:   h.platform,
		timer:      h.platform.Timer(),
		transport:  h.platform.Transport(),
		handle:     h,
		cfg:        cfg,
		generation: generation,
	}
}

// Handle returns the handle shared by every coordinator of this boot flow.
func (c *Coordinator) Handle() *Handle {
	return c.handle
}

// Generation numbers coordinators of one boot flow from 1.
func (c *Coordinator) Generation() uint32 {
	return c.generation
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Retired reports whether a successor or shutdown replaced this coordinator.
func (c *Coordinator) Retired() bool {
	return c.retired.Load()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GUARDS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// live rejects operations on a retired or not yet ready coordinator.
func (c *Coordinator) live() error {
	if c.retired.Load() || c.handle.Stopped() {
		return ErrRetired
	}
	if c.Phase() != PhaseReady {
		return fmt.Errorf("%w: coordinator %s", ErrNotReady, c.Phase())
	}
	return nil
}

// primaryOnly additionally rejects callers other than the primary unit.
func (c *Coordinator) primaryOnly(op string) error {
	if err := c.live(); err != nil {
		return err
	}
	id, ok := c.platform.CurrentIdentity()
	if !ok || id != c.units[c.bspIndex].identity {
		debug.DropLimited("USAGE", fmt.Errorf("%s called by unit %#x: %w", op, id, ErrUnsupported))
		return ErrUnsupported
	}
	return nil
}

// secondary validates a processor number for an administrative or targeted
// operation.
func (c *Coordinator) secondary(index int) (*unit, error) {
	if index < 0 || index >= len(c.units) {
		return nil, fmt.Errorf("%w: processor %d out of range [0,%d)", ErrInvalidParameter, index, len(c.units))
	}
	if index == c.bspIndex {
		return nil, fmt.Errorf("%w: processor %d is the primary unit", ErrInvalidParameter, index)
	}
	return &c.units[index], nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// QUERIES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// WhoAmI returns the calling unit's processor number. Any registered unit may
// call it.
func (c *Coordinator) WhoAmI() (int, error) {
	if err := c.live(); err != nil {
		return 0, err
	}
	id, ok := c.platform.CurrentIdentity()
	if !ok {
		return 0, ErrNotFound
	}
	n, ok := c.index.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: identity %#x", ErrNotFound, id)
	}
	return int(n), nil
}

// GetProcessorCount returns the registry size and the number of units not
// disabled, the primary included.
func (c *Coordinator) GetProcessorCount() (total, enabled int, err error) {
	if err := c.live(); err != nil {
		return 0, 0, err
	}
	for i := range c.units {
		if c.units[i].load() != types.StateDisabled {
			enabled++
		}
	}
	return len(c.units), enabled, nil
}

// GetUnitInfo describes the unit at processor number index.
func (c *Coordinator) GetUnitInfo(index int) (UnitInfo, error) {
	if err := c.live(); err != nil {
		return UnitInfo{}, err
	}
	if index < 0 || index >= len(c.units) {
		return UnitInfo{}, fmt.Errorf("%w: processor %d out of range [0,%d)", ErrInvalidParameter, index, len(c.units))
	}
	return c.info(&c.units[index]), nil
}

func (c *Coordinator) info(u *unit) UnitInfo {
	st := u.load()
	return UnitInfo{
		Index:    u.index,
		Identity: u.identity,
		IsBSP:    u.isBSP,
		Healthy:  u.health.Passed(),
		Health:   u.health,
		Enabled:  st != types.StateDisabled,
		State:    st,
	}
}

// snapshot returns UnitInfo for the whole registry.
func (c *Coordinator) snapshot() []UnitInfo {
	out := make([]UnitInfo, len(c.units))
	for i := range c.units {
		out[i] = c.info(&c.units[i])
	}
	return out
}

// secondaryIdentities returns the identities of every secondary unit in
// registry order, or nil before the registry exists.
func (c *Coordinator) secondaryIdentities() []types.Identity {
	if c.Phase() == PhaseDiscovering || c.Phase() == PhaseFailed {
		return nil
	}
	return c.apIDs
}

// Transitions drains the transition trace of the unit at index. Primary only.
// dropped counts events lost to a full ring since the coordinator was built.
func (c *Coordinator) Transitions(index int) (events []trace.Event, dropped uint64, err error) {
	if err := c.primaryOnly("Transitions"); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(c.units) {
		return nil, 0, fmt.Errorf("%w: processor %d out of range [0,%d)", ErrInvalidParameter, index, len(c.units))
	}
	r := c.units[index].trace
	if r == nil {
		return nil, 0, nil
	}
	return r.Drain(nil), r.Dropped(), nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ADMINISTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SetEnabled moves a secondary unit between Idle and Disabled. Repeating the
// current setting is a no-op. A unit with a task in flight is rejected with
// ErrNotReady.
func (c *Coordinator) SetEnabled(index int, enabled bool) error {
	if err := c.primaryOnly("SetEnabled"); err != nil {
		return err
	}
	u, err := c.secondary(index)
	if err != nil {
		return err
	}
	c.reap()

	if u.waiting || u.call.active || u.orphaned {
		return fmt.Errorf("%w: processor %d has a task in flight", ErrNotReady, index)
	}

	u.lock.Lock()
	defer u.lock.Unlock()

	switch st := u.load(); {
	case enabled && st == types.StateDisabled:
		c.transition(u, types.StateIdle)
	case !enabled && st == types.StateIdle:
		c.transition(u, types.StateDisabled)
	case enabled && st == types.StateIdle, !enabled && st == types.StateDisabled:
	default:
		return fmt.Errorf("%w: processor %d is %s", ErrNotReady, index, st)
	}
	return nil
}
