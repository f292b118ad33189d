// ============================================================================
// CPU AFFINITY NO-OP IMPLEMENTATION
// ============================================================================
//
// Platforms without sched_setaffinity(2) keep units as ordinary locked
// threads. Pin validates the core index so configuration errors surface the
// same way on every platform.

//go:build !linux || tinygo

package spin

import "fmt"

// Pin validates core and otherwise does nothing.
func Pin(core int) error {
	if core < 0 || core >= maxCores {
		return fmt.Errorf("spin: core %d outside affinity mask", core)
	}
	return nil
}

// ThreadID is unavailable; zero is returned.
func ThreadID() int {
	return 0
}
