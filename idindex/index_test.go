// ============================================================================
// IDENTITY INDEX VALIDATION SUITE
// ============================================================================
//
// Test categories:
//   - Construction and sizing
//   - Put/Get round trips and misses
//   - Duplicate identities never overwrite
//   - Extreme identities (0, MaxUint32) with the +1 key encoding
//   - Randomized stress against a reference map

package idindex

import (
	"math"
	"math/rand"
	"testing"

	"mpboot/types"
)

// ============================================================================
// CONSTRUCTION
// ============================================================================

func TestNewIndex(t *testing.T) {
	h := New(64)
	if len(h.keys) != 128 || h.mask != 127 {
		t.Fatalf("New(64) sized %d mask %d", len(h.keys), h.mask)
	}
	if h.Len() != 0 {
		t.Fatal("fresh index not empty")
	}

	var zero Index
	if _, ok := zero.Get(1); ok {
		t.Fatal("zero Index reported a hit")
	}
}

// ============================================================================
// BASIC OPERATIONS
// ============================================================================

func TestPutAndGet(t *testing.T) {
	h := New(8)
	ids := []types.Identity{0x10, 0x02, 0x30, 0x04}
	for i, id := range ids {
		if _, ok := h.Put(id, uint32(i)); !ok {
			t.Fatalf("Put(%#x) rejected", id)
		}
	}
	for i, id := range ids {
		got, ok := h.Get(id)
		if !ok || got != uint32(i) {
			t.Fatalf("Get(%#x) = %d, %v; want %d", id, got, ok, i)
		}
	}
	if h.Len() != len(ids) {
		t.Fatalf("Len = %d", h.Len())
	}
}

func TestGetMiss(t *testing.T) {
	h := New(4)
	h.Put(1, 0)
	if _, ok := h.Get(2); ok {
		t.Fatal("unexpected hit")
	}
}

func TestPutDuplicateKeepsFirst(t *testing.T) {
	h := New(4)
	h.Put(7, 3)
	prev, ok := h.Put(7, 9)
	if ok || prev != 3 {
		t.Fatalf("duplicate Put = %d, %v", prev, ok)
	}
	if v, _ := h.Get(7); v != 3 {
		t.Fatalf("duplicate overwrote mapping: %d", v)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d after duplicate", h.Len())
	}
}

func TestExtremeIdentities(t *testing.T) {
	h := New(2)
	h.Put(0, 1)
	h.Put(math.MaxUint32, 2)

	if v, ok := h.Get(0); !ok || v != 1 {
		t.Fatalf("Get(0) = %d, %v", v, ok)
	}
	if v, ok := h.Get(math.MaxUint32); !ok || v != 2 {
		t.Fatalf("Get(max) = %d, %v", v, ok)
	}
}

func TestFullTableDenseIdentities(t *testing.T) {
	const n = 64
	h := New(n)
	for i := 0; i < n; i++ {
		h.Put(types.Identity(i), uint32(n-1-i))
	}
	for i := 0; i < n; i++ {
		if v, ok := h.Get(types.Identity(i)); !ok || v != uint32(n-1-i) {
			t.Fatalf("Get(%d) = %d, %v", i, v, ok)
		}
	}
	for i := n; i < 2*n; i++ {
		if _, ok := h.Get(types.Identity(i)); ok {
			t.Fatalf("phantom hit for %d", i)
		}
	}
}

// ============================================================================
// STRESS
// ============================================================================

func TestRandomStress(t *testing.T) {
	const n = 64
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		h := New(n)
		ref := make(map[types.Identity]uint32, n)
		for len(ref) < n {
			id := types.Identity(rng.Uint32())
			if _, dup := ref[id]; dup {
				continue
			}
			ref[id] = uint32(len(ref))
			h.Put(id, ref[id])
		}
		for id, want := range ref {
			if got, ok := h.Get(id); !ok || got != want {
				t.Fatalf("round %d: Get(%#x) = %d, %v; want %d", round, id, got, ok, want)
			}
		}
	}
}

func BenchmarkGet(b *testing.B) {
	h := New(64)
	for i := 0; i < 64; i++ {
		h.Put(types.Identity(i*4), uint32(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Get(types.Identity((i & 63) * 4))
	}
}
