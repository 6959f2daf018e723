package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOnMainThread is returned when a primitive is called off the
	// looper goroutine. No side effects occur.
	ErrNotOnMainThread = errors.New("controller: must be called on the looper goroutine")

	// ErrReentrancy is matched by [*ReentrancyError].
	ErrReentrancy = errors.New("controller: reentrant call")

	// ErrInvalidDuration is returned by LoopMainThreadForAtLeast for a
	// non-positive duration.
	ErrInvalidDuration = errors.New("controller: duration must be positive")

	// ErrInjectionIncomplete is returned when an injection round ended
	// (typically by a log-only master policy) before the injection
	// finished.
	ErrInjectionIncomplete = errors.New("controller: injection did not complete")
)

// ReentrancyError reports a blocking primitive invoked while already
// active. It is a programming error.
type ReentrancyError struct {
	Op string
}

func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("controller: %s called recursively", e.Op)
}

func (e *ReentrancyError) Is(target error) bool { return target == ErrReentrancy }
