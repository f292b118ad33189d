// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🖥 SIMULATED PLATFORM
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Units, Trampoline, Timer & Wake Transport
//
// Description:
//   Stands in for the machine. Each secondary unit of the topology is a goroutine that runs
//   its boot self-test, optionally locks itself to an OS thread pinned to its core, and then
//   jumps into the coordinator's entry function with the handle, exactly once. Identity is
//   resolved from the calling goroutine, the way real hardware reads its own APIC id.
//
// Collaborators provided:
//   - Timer: monotonic clock scaled to the topology's frequency and counter width
//   - Transport: doorbell (interrupt-like) or polled (memory flag only)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"mpboot/constants"
	"mpboot/debug"
	"mpboot/mp"
	"mpboot/selftest"
	"mpboot/spin"
	"mpboot/timeout"
	"mpboot/topology"
	"mpboot/types"
	"mpboot/wake"
)

// ErrReleased is returned by a second Release.
var ErrReleased = errors.New("platform: units already released")

// Platform implements mp.Platform over goroutines.
type Platform struct {
	cfg       topology.Config
	clock     *timeout.Clock
	transport wake.Transport

	mu     sync.RWMutex
	bound  map[uint64]types.Identity // goroutine id → identity
	health map[types.Identity]types.Health

	selfTests atomic.Int32
	released  atomic.Bool
	handle    atomic.Pointer[mp.Handle]
	wg        sync.WaitGroup
}

// New builds a platform for cfg. cfg is validated first.
func New(cfg topology.Config) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		cfg:    cfg,
		clock:  timeout.NewClock(cfg.TimerHz, cfg.CounterBits).WithOffset(cfg.TimerOffset),
		bound:  make(map[uint64]types.Identity, len(cfg.Units)),
		health: make(map[types.Identity]types.Health, len(cfg.Units)),
	}

	switch cfg.Transport {
	case topology.TransportPolled:
		p.transport = wake.Polled{}
	default:
		p.transport = wake.NewDoorbell(cfg.Identities(), constants.HaltQuantumMicros*time.Microsecond)
	}
	return p, nil
}

// BindPrimary makes the calling goroutine the primary unit and runs its
// self-test.
func (p *Platform) BindPrimary() types.Identity {
	u := p.cfg.Primary()
	p.boot(u)
	return u.Identity
}

// boot binds the calling goroutine to u and records u's self-test result.
func (p *Platform) boot(u topology.Unit) {
	h := selftest.Run(u.Identity, u.FailSelfTest)
	p.selfTests.Add(1)

	p.mu.Lock()
	p.bound[spin.GoroutineID()] = u.Identity
	p.health[u.Identity] = h
	p.mu.Unlock()

	if !h.Passed() {
		debug.DropError("SELFTEST", fmt.Errorf("unit %#x signature %#x", u.Identity, uint32(h)))
	}
}

// SelfTests returns how many self-tests have run.
func (p *Platform) SelfTests() int {
	return int(p.selfTests.Load())
}

// Topology returns the configuration the platform was built from.
func (p *Platform) Topology() topology.Config {
	return p.cfg
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// mp.Platform
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// MaxUnits counts every configured slot, absent units included.
func (p *Platform) MaxUnits() int {
	return len(p.cfg.Units)
}

// CurrentIdentity resolves the calling goroutine to its unit.
func (p *Platform) CurrentIdentity() (types.Identity, bool) {
	gid := spin.GoroutineID()
	p.mu.RLock()
	id, ok := p.bound[gid]
	p.mu.RUnlock()
	return id, ok
}

// BootHealth returns the cached self-test result.
func (p *Platform) BootHealth(id types.Identity) types.Health {
	p.mu.RLock()
	h := p.health[id]
	p.mu.RUnlock()
	return h
}

// Transport returns the wake transport chosen by the topology.
func (p *Platform) Transport() wake.Transport {
	return p.transport
}

// Timer returns the platform clock.
func (p *Platform) Timer() timeout.Timer {
	return p.clock
}

// Release starts one goroutine per present secondary unit.
func (p *Platform) Release(h *mp.Handle, entry mp.EntryFunc) error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	p.handle.Store(h)

	for _, u := range p.cfg.Units {
		if u.Primary || u.Absent {
			continue
		}
		p.wg.Add(1)
		go p.run(u, h, entry)
	}
	return nil
}

// run is the trampoline of one secondary unit.
func (p *Platform) run(u topology.Unit, h *mp.Handle, entry mp.EntryFunc) {
	defer p.wg.Done()

	if p.cfg.Pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := spin.Pin(u.Core); err != nil {
			debug.DropError("PIN", err)
		}
	}

	p.boot(u)
	debug.Logger().Debug().
		Str("tag", "UNIT").
		Uint64("identity", uint64(u.Identity)).
		Int("core", u.Core).
		Int("tid", spin.ThreadID()).
		Bool("pinned", p.cfg.Pin).
		Log("released")
	entry(h)

	p.mu.Lock()
	delete(p.bound, spin.GoroutineID())
	p.mu.Unlock()
}

// Shutdown stops every idle loop and waits for the unit goroutines to exit.
func (p *Platform) Shutdown() {
	if h := p.handle.Load(); h != nil {
		h.Shutdown()
	}
	p.wg.Wait()
}
