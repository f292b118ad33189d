// setaffinity_linux.go - Linux CPU affinity via sched_setaffinity(2)

//go:build linux && !tinygo

package spin

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pin binds the calling OS thread to the given core. The caller must already
// hold runtime.LockOSThread, otherwise the binding follows whichever goroutine
// next runs on the thread.
func Pin(core int) error {
	if core < 0 || core >= maxCores {
		return fmt.Errorf("spin: core %d outside affinity mask", core)
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	// pid 0 = current thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("spin: pin core %d: %w", core, err)
	}
	return nil
}

// ThreadID returns the kernel thread id of the caller, for diagnostics.
func ThreadID() int {
	return unix.Gettid()
}
