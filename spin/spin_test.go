// ============================================================================
// SPIN PRIMITIVE VALIDATION SUITE
// ============================================================================
//
// Test categories:
//   - Lock mutual exclusion under contention
//   - TryLock / Unlock misuse
//   - Backoff budget accounting
//   - Goroutine identity stability and uniqueness
//   - Pin argument validation

package spin

import (
	"sync"
	"testing"

	"mpboot/constants"
)

// ============================================================================
// LOCK
// ============================================================================

func TestLockMutualExclusion(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)

	var (
		l       Lock
		counter int
		wg      sync.WaitGroup
	)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*rounds {
		t.Fatalf("counter = %d, want %d", counter, workers*rounds)
	}
}

func TestTryLock(t *testing.T) {
	var l Lock
	if !l.TryLock() {
		t.Fatal("TryLock on free lock failed")
	}
	if l.TryLock() {
		t.Fatal("TryLock on held lock succeeded")
	}
	l.Unlock()
	if !l.TryLock() {
		t.Fatal("TryLock after Unlock failed")
	}
	l.Unlock()
}

func TestUnlockOfUnlockedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	var l Lock
	l.Unlock()
}

// ============================================================================
// BACKOFF
// ============================================================================

func TestBackoffExhausted(t *testing.T) {
	var b Backoff
	for i := 1; i < constants.SpinBudget; i++ {
		if b.Exhausted() {
			t.Fatalf("exhausted early at miss %d", i)
		}
	}
	if !b.Exhausted() {
		t.Fatal("budget not exhausted at SpinBudget misses")
	}
	if b.miss != 0 {
		t.Fatalf("miss counter not reset: %d", b.miss)
	}
}

func TestBackoffReset(t *testing.T) {
	var b Backoff
	for i := 0; i < 10; i++ {
		b.Pause()
	}
	b.Reset()
	if b.miss != 0 {
		t.Fatalf("Reset left miss = %d", b.miss)
	}
}

// ============================================================================
// GOROUTINE IDENTITY
// ============================================================================

func TestGoroutineIDStableAndDistinct(t *testing.T) {
	self := GoroutineID()
	if self == 0 {
		t.Fatal("zero goroutine id")
	}
	if again := GoroutineID(); again != self {
		t.Fatalf("id changed within goroutine: %d then %d", self, again)
	}

	other := make(chan uint64)
	go func() { other <- GoroutineID() }()
	if id := <-other; id == self || id == 0 {
		t.Fatalf("other goroutine id = %d, self = %d", id, self)
	}
}

// ============================================================================
// PINNING
// ============================================================================

func TestPinRejectsOutOfRange(t *testing.T) {
	if err := Pin(-1); err == nil {
		t.Fatal("Pin(-1) accepted")
	}
	if err := Pin(maxCores); err == nil {
		t.Fatal("Pin(maxCores) accepted")
	}
}

func BenchmarkLockUncontended(b *testing.B) {
	var l Lock
	for i := 0; i < b.N; i++ {
		l.Lock()
		l.Unlock()
	}
}
