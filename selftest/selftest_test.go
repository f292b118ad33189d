package selftest

import (
	"bytes"
	"testing"

	"mpboot/types"
)

func TestRunPasses(t *testing.T) {
	for _, id := range []types.Identity{0, 1, 7, 0xFFFFFFFF} {
		if h := Run(id, false); !h.Passed() {
			t.Fatalf("Run(%#x) = %#x, want pass", id, uint32(h))
		}
	}
}

func TestRunFaultReportsSignature(t *testing.T) {
	for _, id := range []types.Identity{0, 3, 42} {
		if h := Run(id, true); h.Passed() {
			t.Fatalf("faulted Run(%#x) passed", id)
		}
	}
}

func TestPatternDependsOnIdentity(t *testing.T) {
	a, b := pattern(1), pattern(2)
	if bytes.Equal(a, b) {
		t.Fatal("distinct identities produced identical patterns")
	}
	if !bytes.Equal(a, pattern(1)) {
		t.Fatal("pattern is not deterministic")
	}
}

func BenchmarkRun(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Run(types.Identity(i), false)
	}
}
