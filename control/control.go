// control.go: Stop and activity flags shared by a coordinator's idle loops
// ============================================================================
// IDLE LOOP ORCHESTRATION
// ============================================================================
//
// Control provides the lightweight signaling that every secondary unit's idle
// loop polls between wake-slot checks.
//
// Architecture overview:
//   • Stop flag: set once when the boot flow tears the simulated units down
//   • Hot flag: set by the primary on every dispatch, cleared after a quiet
//     cooldown so idle units fall back from pure spinning to halting
//
// Threading model:
//   • The primary calls SignalActivity() when it arms wake slots
//   • Secondary units call PollCooldown() and read Hot()/Stopped() each spin
//   • Shutdown() may be called from any goroutine
//
// Safety guarantees:
//   • All fields are single-word atomics; no lock is ever taken
//   • Bounded cooldown prevents indefinite hot spinning

package control

import (
	"sync/atomic"
	"time"
)

// ============================================================================
// FLAG SET
// ============================================================================

// Flags is one handle's coordination state. The zero value is running and
// cold, with a zero cooldown; use New for a configured cooldown.
//
//go:align 64
type Flags struct {
	stop     atomic.Uint32 // 1 = idle loops must return
	hot      atomic.Uint32 // 1 = recent dispatch activity
	lastHot  atomic.Int64  // UnixNano of the last SignalActivity
	cooldown int64         // nanoseconds of quiet before hot clears
	_        [40]byte
}

// New returns running, cold flags with the given cooldown.
func New(cooldown time.Duration) *Flags {
	f := &Flags{}
	f.cooldown = int64(cooldown)
	return f
}

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the flag set hot and records the time of activity.
func (f *Flags) SignalActivity() {
	f.lastHot.Store(time.Now().UnixNano())
	f.hot.Store(1)
}

// PollCooldown clears the hot flag once the cooldown has elapsed since the
// last activity. Idle loops call it inline while spinning.
func (f *Flags) PollCooldown() {
	if f.hot.Load() == 1 && time.Now().UnixNano()-f.lastHot.Load() > f.cooldown {
		f.hot.Store(0)
	}
}

// Hot reports whether dispatch activity is recent.
func (f *Flags) Hot() bool {
	return f.hot.Load() == 1
}

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown tells every idle loop observing these flags to return.
func (f *Flags) Shutdown() {
	f.stop.Store(1)
}

// Stopped reports whether Shutdown has been called.
func (f *Flags) Stopped() bool {
	return f.stop.Load() == 1
}
