// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SPIN PRIMITIVES
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Unit-Scoped Locks & Bounded Busy-Waiting
//
// Description:
//   There is no scheduler to suspend on in the modeled environment, so every wait is a
//   poll loop. Lock is the per-unit mutual exclusion guarding a unit's state word, and
//   Backoff is the miss counter shared by all poll loops: relax on every miss, yield the
//   processor once the spin budget is spent.
//
// Threading model:
//   - Lock is held only across short compound check-and-set sequences
//   - Backoff is owned by a single poller and is never shared
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package spin

import (
	"runtime"
	"sync/atomic"

	"mpboot/constants"
)

// maxCores is the width of the affinity mask accepted by Pin.
const maxCores = constants.MaxUnits

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// UNIT LOCK
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Lock is a test-and-test-and-set spin lock. The zero value is unlocked.
//
//go:align 64
type Lock struct {
	word atomic.Uint32
	_    [60]byte // keep neighbouring unit locks off this cache line
}

// Lock acquires the lock, spinning until it is free.
func (l *Lock) Lock() {
	var b Backoff
	for {
		if l.word.Load() == 0 && l.word.CompareAndSwap(0, 1) {
			return
		}
		b.Pause()
	}
}

// TryLock acquires the lock if it is free.
func (l *Lock) TryLock() bool {
	return l.word.Load() == 0 && l.word.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Lock panics, as with sync.Mutex.
func (l *Lock) Unlock() {
	if !l.word.CompareAndSwap(1, 0) {
		panic("spin: unlock of unlocked lock")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BACKOFF
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Backoff tracks consecutive failed polls of a single spinner.
type Backoff struct {
	miss int
}

// Pause records a miss: relax the pipeline, and once SpinBudget misses have
// accumulated yield the processor so co-located spinners make progress.
func (b *Backoff) Pause() {
	Relax()
	if b.miss++; b.miss >= constants.SpinBudget {
		b.miss = 0
		runtime.Gosched()
	}
}

// Exhausted records a miss and reports whether the spin budget has been used
// up, resetting it when it has. Callers use it to decide when to halt.
func (b *Backoff) Exhausted() bool {
	if b.miss++; b.miss >= constants.SpinBudget {
		b.miss = 0
		return true
	}
	Relax()
	return false
}

// Reset clears the miss counter after a successful poll.
//
//go:nosplit
//go:inline
func (b *Backoff) Reset() {
	b.miss = 0
}
