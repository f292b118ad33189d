// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - ARM64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: ARM64 Spin-Wait Hint
//
// Description:
//   Emits the YIELD instruction inside wake-slot and completion polling loops.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build arm64 && cgo && !noasm

package spin

/*
#ifdef __aarch64__
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
#else
#error "This file requires ARM64 architecture"
#endif
*/
import "C"

// Relax emits ARM64 YIELD for one iteration of a busy-wait loop.
//
//go:nosplit
//go:inline
func Relax() {
	C.cpu_yield()
}
