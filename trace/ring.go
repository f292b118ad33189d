// ============================================================================
// UNIT TRANSITION TRACE RING
// ============================================================================
//
// Single-producer/single-consumer ring of state transitions, one ring per
// unit. It is the external monitor used to check that a unit only ever walks
// Idle → Ready → Busy → Finished → Idle.
//
// Producer discipline:
//   - Transitions are written by whichever side changes the state (primary
//     or owning unit), always while holding that unit's lock; the lock
//     serializes producers, so the ring sees exactly one producer at a time.
//
// Consumer discipline:
//   - Only the primary drains a ring.
//
// Capacity model:
//   - Power-of-2 sizing with bit masking
//   - Push on a full ring drops the event and counts the drop; tracing must
//     never stall a state transition

package trace

import (
	"sync/atomic"

	"mpboot/types"
)

// ============================================================================
// CORE DATA STRUCTURES
// ============================================================================

// Event is one observed transition. 24 bytes, matching the slot payload.
type Event struct {
	Tick       uint64      // 8B - platform timer sample at the transition
	Generation uint32      // 4B - coordinator generation
	Unit       uint32      // 4B - processor number
	From       types.State // 4B
	To         types.State // 4B
}

// slot holds one event plus its availability sequence.
//
// Sequence semantics:
//   - Producer: sets seq = position + 1 when data ready
//   - Consumer: expects seq = position + 1, resets to position + size
//
//go:align 32
type slot struct {
	val Event  // 24B
	seq uint64 // 8B
}

// Ring is a bounded SPSC transition log with cursor isolation.
//
//go:align 64
type Ring struct {
	_    [64]byte
	head uint64 // consumer cursor

	_    [56]byte
	tail uint64 // producer cursor

	_       [56]byte
	dropped atomic.Uint64

	mask uint64
	step uint64
	buf  []slot
}

// ============================================================================
// CONSTRUCTOR
// ============================================================================

// New creates a ring holding size events. size must be a positive power of 2.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("trace: size must be >0 and power of two")
	}

	r := &Ring{
		mask: uint64(size - 1),
		step: uint64(size),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// ============================================================================
// PRODUCER OPERATIONS
// ============================================================================

// Push appends e. When the ring is full the event is dropped and counted.
func (r *Ring) Push(e Event) bool {
	t := r.tail
	s := &r.buf[t&r.mask]

	if atomic.LoadUint64(&s.seq) != t {
		r.dropped.Add(1)
		return false
	}

	s.val = e
	atomic.StoreUint64(&s.seq, t+1)
	r.tail = t + 1
	return true
}

// ============================================================================
// CONSUMER OPERATIONS
// ============================================================================

// Pop removes the oldest event.
func (r *Ring) Pop() (Event, bool) {
	h := r.head
	s := &r.buf[h&r.mask]

	if atomic.LoadUint64(&s.seq) != h+1 {
		return Event{}, false
	}

	e := s.val
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return e, true
}

// Drain appends every available event to dst and returns it.
func (r *Ring) Drain(dst []Event) []Event {
	for {
		e, ok := r.Pop()
		if !ok {
			return dst
		}
		dst = append(dst, e)
	}
}

// Dropped returns how many events were lost to a full ring.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}
