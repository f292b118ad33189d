// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⏱ TIMEOUT ENGINE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Tick Budgets & Wrap-Safe Expiry
//
// Description:
//   Converts microsecond timeouts into platform timer ticks and answers "has this budget
//   been spent" against a free-running counter that may be narrower than 64 bits and may
//   wrap. Elapsed time is accumulated poll by poll, so any number of wraps is tolerated as
//   long as the poller samples at least once per counter period.
//
// Numeric policy:
//   - All arithmetic is unsigned
//   - A budget of 0 ticks means "wait forever"
//   - freq×µs overflow switches to a seconds-based computation, then saturates
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package timeout

import (
	"math"
	"math/bits"

	"mpboot/constants"
)

// Timer is the platform counter consumed by the engine.
type Timer interface {
	// Now returns the current counter value. Only the low CounterBits bits
	// are significant.
	Now() uint64
	// FrequencyHz returns the counter frequency.
	FrequencyHz() uint64
	// CounterBits returns the counter width, 1..64.
	CounterBits() uint
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BUDGET CONVERSION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Infinite is the budget that never expires.
const Infinite uint64 = 0

// BudgetTicks converts micros into a tick budget for t. Zero micros yields
// Infinite. A non-zero timeout never rounds down to Infinite: the smallest
// finite budget is one tick.
func BudgetTicks(t Timer, micros uint64) uint64 {
	if micros == 0 {
		return Infinite
	}
	ticks := ticksFor(t.FrequencyHz(), micros)
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

// ticksFor computes freq×micros/1e6 without losing the high word.
func ticksFor(freq, micros uint64) uint64 {
	hi, lo := bits.Mul64(freq, micros)
	if hi == 0 {
		return lo / constants.MicrosPerSecond
	}

	// Direct product overflowed: whole seconds first, then the remainder.
	secs := micros / constants.MicrosPerSecond
	rem := micros % constants.MicrosPerSecond

	sh, whole := bits.Mul64(freq, secs)
	if sh != 0 {
		return math.MaxUint64
	}
	// rem < 1e6, so freq×rem/1e6 < freq and cannot overflow after division;
	// bits.Div64 keeps the intermediate product exact.
	ph, pl := bits.Mul64(freq, rem)
	part, _ := bits.Div64(ph, pl, constants.MicrosPerSecond)

	sum, carry := bits.Add64(whole, part, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// EXPIRY
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Mask returns the counter mask for t.
//
//go:nosplit
//go:inline
func Mask(t Timer) uint64 {
	w := t.CounterBits()
	if w == 0 || w >= 64 {
		return math.MaxUint64
	}
	return 1<<w - 1
}

// Elapsed returns the ticks between baseline and now modulo the counter period.
//
//go:nosplit
//go:inline
func Elapsed(t Timer, baseline, now uint64) uint64 {
	return (now - baseline) & Mask(t)
}

// Expired samples t, adds the ticks elapsed since *baseline to *accumulated,
// moves *baseline to the sample, and reports whether *accumulated has reached
// budget. An Infinite budget never expires.
func Expired(t Timer, baseline, accumulated *uint64, budget uint64) bool {
	if budget == Infinite {
		return false
	}
	now := t.Now()
	delta := Elapsed(t, *baseline, now)
	*baseline = now

	sum, carry := bits.Add64(*accumulated, delta, 0)
	if carry != 0 {
		sum = math.MaxUint64
	}
	*accumulated = sum
	return sum >= budget
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DEADLINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Deadline bundles the three bookkeeping words of one timed wait.
type Deadline struct {
	Budget      uint64 // expected ticks; Infinite = never
	Baseline    uint64 // last sample
	Accumulated uint64 // ticks observed so far
}

// Start begins a timed wait of micros on t.
func Start(t Timer, micros uint64) Deadline {
	return Deadline{
		Budget:   BudgetTicks(t, micros),
		Baseline: t.Now() & Mask(t),
	}
}

// Expired samples t and reports whether the budget is spent.
func (d *Deadline) Expired(t Timer) bool {
	return Expired(t, &d.Baseline, &d.Accumulated, d.Budget)
}

// Infinite reports whether d never expires.
func (d *Deadline) Infinite() bool {
	return d.Budget == Infinite
}
