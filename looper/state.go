package looper

import (
	"sync/atomic"
)

// LooperState represents the lifecycle state of a [Looper].
//
// State Machine:
//
//	StateAwake → StateRunning             [Run()]
//	StateAwake → StateTerminated          [Shutdown() before Run()]
//	StateRunning → StateTerminating       [Shutdown()]
//	StateRunning → StateTerminated        [Run() context done]
//	StateTerminating → StateTerminated    [Run() returned]
//	StateTerminated → (terminal)
//
// Use TryTransition (CAS) for every transition except the final store of
// StateTerminated, which is performed only by the goroutine that owns the
// transition.
type LooperState uint64

const (
	// StateAwake indicates the looper has been created but not started.
	StateAwake LooperState = iota
	// StateRunning indicates Run is dispatching messages.
	StateRunning
	// StateTerminating indicates shutdown has been requested but Run has not
	// yet returned.
	StateTerminating
	// StateTerminated indicates the looper has stopped. Posting fails.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LooperState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder.
type fastState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // LooperState
	_ [56]byte      //nolint:unused
}

func (s *fastState) Load() LooperState {
	return LooperState(s.v.Load())
}

// Store is reserved for the terminal state.
func (s *fastState) Store(state LooperState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LooperState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// acceptsWork reports whether posting is still permitted.
func (s *fastState) acceptsWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning
}
