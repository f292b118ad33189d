// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ IDENTITY INDEX
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Identity → Processor Number Lookup
//
// Description:
//   Fixed-capacity Robin Hood table mapping a unit's hardware identity to its canonical
//   processor number. Built once by the primary when enumeration closes, then read
//   lock-free by every unit (WhoAmI, slot resolution after a coordinator change).
//
// Design Principles:
//   - Power-of-2 sizing at 2× capacity keeps probe chains short
//   - Keys are identity+1 so the zero word stays the empty sentinel for every identity
//   - Avalanche-mixed ideal positions: hardware ids are often dense or strided
//   - Immutable after construction: no synchronization on the read path
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package idindex

import "mpboot/types"

// Index is an immutable-after-build identity lookup table.
//
//go:align 64
type Index struct {
	keys []uint64 // identity+1; 0 = empty
	vals []uint32 // processor number
	mask uint64
	n    int
}

// nextPow2 returns the smallest power of 2 ≥ n (minimum 1).
//
//go:nosplit
//go:inline
func nextPow2(n int) uint64 {
	s := uint64(1)
	for s < uint64(n) {
		s <<= 1
	}
	return s
}

// mix64 applies a Murmur3-style avalanche.
//
//go:nosplit
//go:inline
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// New creates an empty index for capacity identities.
func New(capacity int) Index {
	sz := nextPow2(capacity * 2)
	return Index{
		keys: make([]uint64, sz),
		vals: make([]uint32, sz),
		mask: sz - 1,
	}
}

// ideal returns the home bucket of an encoded key.
//
//go:nosplit
//go:inline
func (h *Index) ideal(k uint64) uint64 {
	return mix64(k) & h.mask
}

// Put maps id to unit. It returns the existing mapping and false when id is
// already present; the table is never overwritten, so a duplicate identity
// surfaces to the caller instead of silently replacing a unit.
func (h *Index) Put(id types.Identity, unit uint32) (uint32, bool) {
	key := uint64(id) + 1
	val := unit
	i := h.ideal(key)
	dist := uint64(0)

	for {
		k := h.keys[i]

		if k == 0 {
			h.keys[i], h.vals[i] = key, val
			h.n++
			return unit, true
		}

		if k == key {
			return h.vals[i], false
		}

		// Displace occupants that sit closer to home than we do.
		kDist := (i + h.mask + 1 - h.ideal(k)) & h.mask
		if kDist < dist {
			key, h.keys[i] = h.keys[i], key
			val, h.vals[i] = h.vals[i], val
			dist = kDist
		}

		i = (i + 1) & h.mask
		dist++
	}
}

// Get returns the processor number mapped to id.
func (h *Index) Get(id types.Identity) (uint32, bool) {
	if len(h.keys) == 0 {
		return 0, false
	}
	key := uint64(id) + 1
	i := h.ideal(key)
	dist := uint64(0)

	for {
		k := h.keys[i]

		if k == 0 {
			return 0, false
		}
		if k == key {
			return h.vals[i], true
		}

		// Robin Hood invariant: our key cannot live past a richer occupant.
		kDist := (i + h.mask + 1 - h.ideal(k)) & h.mask
		if kDist < dist {
			return 0, false
		}

		i = (i + 1) & h.mask
		dist++
	}
}

// Len returns the number of mapped identities.
func (h *Index) Len() int {
	return h.n
}
