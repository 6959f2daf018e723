package looper

import (
	"errors"
	"fmt"
)

var (
	// ErrLooperRunning is returned by Run if the looper is already running.
	ErrLooperRunning = errors.New("looper: already running")

	// ErrLooperTerminated is returned when posting to, running, or shutting
	// down a looper that has stopped.
	ErrLooperTerminated = errors.New("looper: terminated")

	// ErrReentrantRun is returned if Run is called from the owner goroutine.
	ErrReentrantRun = errors.New("looper: cannot call Run from within the loop")

	// ErrNotOwner is returned when an owner-only operation is attempted from
	// any other goroutine.
	ErrNotOwner = errors.New("looper: not called on the looper goroutine")

	// ErrShutdownFromLooper is returned if Shutdown is called from the owner
	// goroutine, which would otherwise wait on itself.
	ErrShutdownFromLooper = errors.New("looper: cannot shut down from within the loop")

	// ErrNilTask is returned when posting a nil task.
	ErrNilTask = errors.New("looper: nil task")

	// ErrInvalidLookahead is returned for a negative due-soon lookahead.
	ErrInvalidLookahead = errors.New("looper: lookahead must not be negative")
)

// PanicError wraps a value recovered from a panicking task. Tasks are run
// through the same recovery on every dispatch path, so a panic never unwinds
// past the dispatcher.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("looper: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
