package timeout

import (
	"math/bits"
	"time"
)

// Clock is a Timer over the Go monotonic clock, scaled to an arbitrary
// frequency and truncated to an arbitrary counter width. A narrow width makes
// the counter wrap quickly, which is how the simulated platform exercises the
// wrap-safe paths.
type Clock struct {
	origin time.Time
	hz     uint64
	width  uint
	mask   uint64
	offset uint64 // added before masking so a wrap can be scheduled early
}

// NewClock returns a counter running at hz with the given width (0 or ≥64
// means 64 bits).
func NewClock(hz uint64, width uint) *Clock {
	if hz == 0 {
		hz = 1_000_000_000
	}
	if width == 0 || width > 64 {
		width = 64
	}
	c := &Clock{origin: time.Now(), hz: hz, width: width}
	c.mask = Mask(c)
	return c
}

// WithOffset starts the counter at offset instead of zero.
func (c *Clock) WithOffset(offset uint64) *Clock {
	c.offset = offset
	return c
}

// Now implements Timer.
func (c *Clock) Now() uint64 {
	ns := uint64(time.Since(c.origin))
	hi, lo := bits.Mul64(ns, c.hz)
	var ticks uint64
	if hi < 1_000_000_000 {
		ticks, _ = bits.Div64(hi, lo, 1_000_000_000)
	}
	return (ticks + c.offset) & c.mask
}

// FrequencyHz implements Timer.
func (c *Clock) FrequencyHz() uint64 { return c.hz }

// CounterBits implements Timer.
func (c *Clock) CounterBits() uint { return c.width }
