// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: x86-64 Spin-Wait Hint
//
// Description:
//   Emits the PAUSE instruction inside wake-slot and completion polling loops. PAUSE
//   releases pipeline resources to the sibling hyperthread and avoids the memory-order
//   violation penalty when the polled word finally changes.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && cgo && !noasm

package spin

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "This file requires x86-64 architecture"
#endif
*/
import "C"

// Relax emits x86-64 PAUSE for one iteration of a busy-wait loop.
//
//go:nosplit
//go:inline
func Relax() {
	C.cpu_pause()
}
