// relax_stub.go: Fallback no-op Relax for builds without a spin hint
//
// Covers CGO-disabled builds, the noasm tag and architectures other than
// amd64/arm64. Spinners still make progress because Backoff yields the
// processor every SpinBudget misses.
//
//go:build !cgo || noasm || (!amd64 && !arm64)

package spin

//go:nosplit
//go:inline
func Relax() {}
