// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ WAKE-SIGNAL PRIMITIVE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Per-Unit Wake Slot
//
// Description:
//   A wake slot is a single cache-line isolated word. The primary arms it with a sentinel
//   and fires the transport; the owning unit observes the sentinel, clears it with a
//   compare-and-swap against the exact value it read, and only then acts. Clearing is the
//   acknowledgement the primary waits for: "send completed", not "task completed".
//
// Sentinel layout:
//   bits 63..32  coordinator generation
//   bits 31..0   request kind (task, reconfigure)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package wake

import (
	"sync/atomic"

	"mpboot/spin"
)

// Kind is the request carried in the low word of a sentinel.
type Kind uint32

// Sentinel packs a generation and a kind. Zero is never a valid sentinel.
//
//go:nosplit
//go:inline
func Sentinel(generation uint32, kind Kind) uint64 {
	return uint64(generation)<<32 | uint64(kind)
}

// Decode splits a sentinel into generation and kind.
//
//go:nosplit
//go:inline
func Decode(v uint64) (generation uint32, kind Kind) {
	return uint32(v >> 32), Kind(uint32(v))
}

// Slot is one unit's wake word. The zero value is clear.
//
//go:align 64
type Slot struct {
	_    [56]byte
	word atomic.Uint64
	_    [56]byte
}

// Arm publishes v if the slot is clear and reports whether it did. A slot
// that still holds an unacknowledged sentinel is left untouched.
func (s *Slot) Arm(v uint64) bool {
	return s.word.CompareAndSwap(0, v)
}

// Load returns the current word without side effects.
//
//go:nosplit
//go:inline
func (s *Slot) Load() uint64 {
	return s.word.Load()
}

// Pending reports whether an armed sentinel has not yet been acknowledged.
//
//go:nosplit
//go:inline
func (s *Slot) Pending() bool {
	return s.word.Load() != 0
}

// Consume clears the slot if it still holds v. The owner calls it with the
// value it observed so a concurrently re-armed or replaced sentinel is never
// acknowledged by mistake.
func (s *Slot) Consume(v uint64) bool {
	return v != 0 && s.word.CompareAndSwap(v, 0)
}

// Clear drops whatever the slot holds.
func (s *Slot) Clear() {
	s.word.Store(0)
}

// WaitAcknowledged spins until the owner clears the slot or expired reports
// true. A nil expired spins without bound. It returns whether the
// acknowledgement was observed.
func (s *Slot) WaitAcknowledged(expired func() bool) bool {
	var b spin.Backoff
	for s.word.Load() != 0 {
		if expired != nil && expired() {
			return s.word.Load() == 0
		}
		b.Pause()
	}
	return true
}
