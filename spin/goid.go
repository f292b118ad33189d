package spin

import "runtime"

// GoroutineID returns the runtime id of the calling goroutine.
//
// Simulated units are goroutines, and a unit must be able to name itself
// without being told (WhoAmI), the way hardware reads its own APIC id. The
// runtime exposes no accessor, so the id is parsed from the first line of
// the caller's stack header: "goroutine 123 [running]:".
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = len("goroutine ")
	if len(b) <= prefix {
		return 0
	}

	var id uint64
	for _, c := range b[prefix:] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
