package mp

import (
	"errors"
	"fmt"
)

// ============================================================================
// ERROR TAXONOMY
// ============================================================================

var (
	// Usage errors: programming mistakes in the caller, no side effects.
	ErrUnsupported      = errors.New("mp: operation must be called by the primary unit")
	ErrInvalidParameter = errors.New("mp: invalid parameter")
	ErrDisabled         = errors.New("mp: unit disabled")
	ErrNotFound         = errors.New("mp: caller is not a registered unit")

	// Contention errors: the caller may retry.
	ErrNotReady   = errors.New("mp: unit not ready")
	ErrNotStarted = errors.New("mp: no enabled secondary units")

	// ErrTimeout is wrapped by *TimeoutError. It is the only error returned
	// after a procedure was already dispatched.
	ErrTimeout = errors.New("mp: timeout")

	// Lifecycle errors.
	ErrEnumeration = errors.New("mp: enumeration failed")
	ErrRetired     = errors.New("mp: coordinator retired")
)

// TimeoutError reports a dispatch that stopped waiting before every selected
// unit finished. Unfinished lists processor numbers in ascending order; those
// units may still complete later and are acknowledged by the next Poll or
// dispatch.
type TimeoutError struct {
	Unfinished []int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mp: timeout with %d unit(s) unfinished %v", len(e.Unfinished), e.Unfinished)
}

// Unwrap lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
